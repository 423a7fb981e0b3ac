package billing

import (
	"crypto/hmac"
	"strings"
)

// CredentialFromHeaders picks the webhook credential out of the request
// headers: a dedicated signature header wins, otherwise the Authorization
// header is used with an optional "Bearer " prefix stripped.
func CredentialFromHeaders(authorization, signature string) string {
	if sig := strings.TrimSpace(signature); sig != "" {
		return sig
	}
	auth := strings.TrimSpace(authorization)
	if len(auth) >= 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return auth
}

// VerifyWebhookCredential compares the presented credential against the
// configured shared secret in constant time. Empty credentials never match.
func VerifyWebhookCredential(credential, secret string) bool {
	cred := strings.TrimSpace(credential)
	sec := strings.TrimSpace(secret)
	if cred == "" || sec == "" {
		return false
	}
	return hmac.Equal([]byte(cred), []byte(sec))
}

package billing

import "testing"

func TestCredentialFromHeaders(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		signature     string
		want          string
	}{
		{name: "dedicated signature header wins", authorization: "Bearer abc", signature: "sig-1", want: "sig-1"},
		{name: "bearer prefix is stripped", authorization: "Bearer token-123", want: "token-123"},
		{name: "lowercase bearer prefix", authorization: "bearer token-123", want: "token-123"},
		{name: "bare token passes through", authorization: "token-123", want: "token-123"},
		{name: "whitespace is trimmed", authorization: "  Bearer token-123  ", want: "token-123"},
		{name: "empty headers yield empty credential", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CredentialFromHeaders(tt.authorization, tt.signature); got != tt.want {
				t.Fatalf("CredentialFromHeaders(%q, %q) = %q, want %q", tt.authorization, tt.signature, got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookCredential(t *testing.T) {
	if !VerifyWebhookCredential("top-secret", "top-secret") {
		t.Fatalf("expected matching credential to verify")
	}
	if VerifyWebhookCredential("wrong", "top-secret") {
		t.Fatalf("expected mismatched credential to fail")
	}
	if VerifyWebhookCredential("", "top-secret") {
		t.Fatalf("expected empty credential to fail")
	}
	if VerifyWebhookCredential("top-secret", "") {
		t.Fatalf("expected empty secret to fail")
	}
}

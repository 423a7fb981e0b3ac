package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// ExtractUsername gets the username from Locals (set by middleware)
func ExtractUsername(c *fiber.Ctx) string {
	// Get from Locals (set by authentication middleware)
	if userNameValue := c.Locals(USER_NAME); userNameValue != nil {
		if userName, ok := userNameValue.(string); ok {
			return userName
		}
	}

	return ""
}

// GetClientIP determines the actual client IP address considering proxies.
// The first hop in X-Forwarded-For wins, then CF-Connecting-IP, then the
// socket address. IPv4-mapped-IPv6 addresses are unwrapped.
func GetClientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	ipAddr := c.IP()
	if strings.HasPrefix(ipAddr, "::ffff:") && strings.Contains(ipAddr, ".") {
		return strings.TrimPrefix(ipAddr, "::ffff:")
	}
	return ipAddr
}

package middleware

import (
	"github.com/TimoBecker/LingoPulse/app/controllers"
	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
	"github.com/TimoBecker/LingoPulse/internal/pkg/session"
	"github.com/TimoBecker/LingoPulse/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// On error: set as anonymous user
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		// Set legacy compatibility locals
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// Get user ID from session
	userID := sess.Get(controllers.USER_ID)
	if userID == nil {
		// Anonymous user - no session data
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		// Set legacy compatibility locals
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// User is logged in - get additional data
	username := session.GetSessionValue(c, controllers.USER_NAME)
	isAdmin := sess.Get(controllers.USER_IS_ADMIN)

	// Determine role with session-first strategy. Billing webhooks can change
	// the role between requests, so the cached value is refreshed from the
	// database when the session has none yet.
	role := session.GetSessionValue(c, controllers.USER_ROLE)
	if role == "" {
		role = models.ROLE_FREE
		if db := database.GetDB(); db != nil {
			var user models.User
			if err := db.First(&user, userID.(uint)).Error; err == nil && user.Role != "" {
				role = user.Role
			}
		}
		// cache in session for subsequent requests
		_ = session.SetSessionValue(c, controllers.USER_ROLE, role)
	}

	// Set complete user context
	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Role:       role,
	}
	c.Locals("USER_CONTEXT", userCtx)

	// Legacy compatibility - keep existing Locals for backward compatibility
	c.Locals(controllers.FROM_PROTECTED, true)
	c.Locals(controllers.USER_NAME, username)
	c.Locals(controllers.USER_ID, userID.(uint))
	c.Locals(controllers.USER_IS_ADMIN, userCtx.IsAdmin)

	return c.Next()
}

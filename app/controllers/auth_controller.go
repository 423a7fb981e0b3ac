package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
	"github.com/TimoBecker/LingoPulse/internal/pkg/mail"
	"github.com/TimoBecker/LingoPulse/internal/pkg/session"
)

const (
	AUTH_KEY       string = "authenticated"
	USER_ID        string = "user_id"
	USER_NAME      string = "username"
	USER_IS_ADMIN  string = "isAdmin"
	USER_ROLE      string = "user_role"
	FROM_PROTECTED string = "from_protected"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a new account and returns it as JSON. The
// account starts inactive until the activation token is redeemed.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Malformed JSON body"})
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := user.GenerateActivationToken(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create activation token"})
	}

	if err := database.GetDB().Create(user).Error; err != nil {
		log.Errorf("[Auth] Could not create user %s: %v", user.Email, err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email is already registered"})
	}

	// send the activation link in the background, registration succeeds either way
	go func(email, name, token string) {
		if err := mail.SendActivationMail(email, name, token); err != nil {
			log.Errorf("[Auth] Could not send activation mail to %s: %v", email, err)
		}
	}(user.Email, user.Name, user.ActivationToken)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     user.ID,
		"name":   user.Name,
		"email":  user.Email,
		"status": user.Status,
	})
}

// HandleAuthActivate redeems an activation token and activates the account.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Missing activation token"})
	}

	var user models.User
	if err := database.GetDB().Where("activation_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown activation token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Activation failed"})
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := database.GetDB().Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Activation failed"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// HandleAuthLogin verifies credentials and opens a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Malformed JSON body"})
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	var user models.User
	result := database.GetDB().Where("email = ?", strings.TrimSpace(req.Email)).First(&user)
	if result.Error != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login failed"})
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login failed"})
	}

	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account is not activated"})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)
	sess.Set(USER_ROLE, user.Role)

	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	return c.JSON(fiber.Map{
		"id":       user.ID,
		"name":     user.Name,
		"role":     user.Role,
		"is_admin": user.Role == models.ROLE_ADMIN,
	})
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	if err := sess.Destroy(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Logout failed"})
	}

	return c.JSON(fiber.Map{"success": true})
}

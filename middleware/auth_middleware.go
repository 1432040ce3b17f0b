package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

// Protected verifies the bearer token issued by the session provider.
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

// OptionalAuth verifies a bearer token when one is sent and lets anonymous
// requests through, so handlers can answer with a domain error instead.
func OptionalAuth(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	return mc, ok
}

func TeacherRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		mc, ok := claims(c)
		role, _ := mc["role"].(string)
		if !ok || role != "teacher" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Teacher access required",
			})
		}
		return c.Next()
	}
}

// UserID is the authenticated user's id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	mc, ok := claims(c)
	if !ok {
		return ""
	}
	id, _ := mc["user_id"].(string)
	return id
}

// CurrentActor describes the requester for the booking flow. Membership is
// filled in by the handler.
func CurrentActor(c *fiber.Ctx) scheduling.Actor {
	mc, ok := claims(c)
	if !ok {
		return scheduling.Actor{}
	}
	a := scheduling.Actor{}
	a.UserID, _ = mc["user_id"].(string)
	a.Email, _ = mc["email"].(string)
	a.Name, _ = mc["name"].(string)
	a.Authenticated = a.UserID != ""
	return a
}

// ParseToken verifies a raw token, for connections that cannot send headers.
func ParseToken(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return mc, nil
}

package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/grade-sanchalaak/internal/utils"
)

// Roles recognised by the grading API.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// RequireStaff admits teachers and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(RoleTeacher, RoleAdmin)
}

// RequireRole rejects callers whose user_role local is not one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := NormalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := roleFromLocals(c.Locals("user_role"))
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "missing role")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "staff role required")
		}
		return c.Next()
	}
}

// NormalizeRole lower-cases and trims a role claim.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func roleFromLocals(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return NormalizeRole(v)
	case fmt.Stringer:
		return NormalizeRole(v.String())
	default:
		return NormalizeRole(fmt.Sprint(v))
	}
}

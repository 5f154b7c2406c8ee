package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireStaff(t *testing.T) {
	cases := []struct {
		role     interface{}
		expected int
	}{
		{role: "teacher", expected: fiber.StatusOK},
		{role: " ADMIN ", expected: fiber.StatusOK},
		{role: RoleStudent, expected: fiber.StatusForbidden},
		{role: nil, expected: fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			if tc.role != nil {
				c.Locals("user_role", tc.role)
			}
			return c.Next()
		})
		app.Post("/assignments", RequireStaff(), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/assignments", nil))
		require.NoError(t, err)
		require.Equal(t, tc.expected, resp.StatusCode, "role %v", tc.role)
	}
}

func TestRequireRoleNormalizesConfiguredRoles(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_role", "student")
		return c.Next()
	})
	app.Get("/submissions", RequireRole(" Student ", ""), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/submissions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Ahmad-Mosha/chat-api/internal/middleware"
)

const jwtTestSecret = "unit-test-secret"

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(secret))
	app.Get("/", func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})
	return app
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func performAuthed(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestJWTProtectedAcceptsSubjectVariants(t *testing.T) {
	cases := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{name: "string subject", claims: jwt.MapClaims{"sub": "42"}},
		{name: "numeric subject", claims: jwt.MapClaims{"sub": 42}},
		{name: "user_id claim", claims: jwt.MapClaims{"user_id": 42}},
		{name: "id claim", claims: jwt.MapClaims{"id": "42"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newProtectedApp(jwtTestSecret)
			resp := performAuthed(t, app, "Bearer "+signToken(t, jwtTestSecret, tc.claims))
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				UserID uint `json:"user_id"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, uint(42), body.UserID)
		})
	}
}

func TestJWTProtectedPropagatesRoleClaim(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.JWTProtected(jwtTestSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		return c.JSON(fiber.Map{"role": role})
	})

	resp := performAuthed(t, app, "Bearer "+signToken(t, jwtTestSecret, jwt.MapClaims{"sub": "42", "role": "Admin"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "admin", body.Role)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := newProtectedApp(jwtTestSecret)
	resp := performAuthed(t, app, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongScheme(t *testing.T) {
	app := newProtectedApp(jwtTestSecret)
	resp := performAuthed(t, app, "Basic dXNlcjpwYXNz")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsForeignSignature(t *testing.T) {
	app := newProtectedApp(jwtTestSecret)
	resp := performAuthed(t, app, "Bearer "+signToken(t, "another-secret", jwt.MapClaims{"sub": "42"}))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsExpiredToken(t *testing.T) {
	app := newProtectedApp(jwtTestSecret)
	claims := jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()}
	resp := performAuthed(t, app, "Bearer "+signToken(t, jwtTestSecret, claims))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsUnsignedAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	app := newProtectedApp(jwtTestSecret)
	resp := performAuthed(t, app, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsTokenWithoutSubject(t *testing.T) {
	app := newProtectedApp(jwtTestSecret)
	resp := performAuthed(t, app, "Bearer "+signToken(t, jwtTestSecret, jwt.MapClaims{"role": "user"}))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "token missing subject", body.Message)
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"csx-backend/internal/constants"
	roles "csx-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func newRequest(method, path string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func send(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(newRequest(method, path, headers))
	require.NoError(t, err)
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func bearer(t *testing.T, c Caller) map[string]string {
	tok, err := GenerateToken(testSecret, c, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestGenerateAndParseToken(t *testing.T) {
	company := uuid.New()
	in := Caller{AccountID: uuid.New(), Role: roles.Company, CompanyID: &company}
	tok, err := GenerateToken(testSecret, in, time.Hour)
	require.NoError(t, err)

	out, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, in.AccountID, out.AccountID)
	assert.Equal(t, roles.Company, out.Role)
	require.NotNil(t, out.CompanyID)
	assert.Equal(t, company, *out.CompanyID)

	_, err = ParseToken(tok, "other-secret")
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken(testSecret, Caller{AccountID: uuid.New(), Role: roles.Individual}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	badRole, err := GenerateToken(testSecret, Caller{AccountID: uuid.New(), Role: "admin"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(badRole, testSecret)
	assert.ErrorIs(t, err, errBadClaims)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": uuid.NewString(), "role": roles.Company}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(noneAlg, testSecret)
	assert.Error(t, err)
}

func TestAuthenticateAndRequireAuth(t *testing.T) {
	app := fiber.New()
	app.Use(Authenticate(testSecret))
	app.Get("/public", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"anonymous": GetCaller(c) == nil})
	})
	app.Get("/private", RequireAuth(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"role": GetCaller(c).Role})
	})

	status, out := send(t, app, "GET", "/public", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, out["anonymous"])

	status, out = send(t, app, "GET", "/private", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", out["error"].(map[string]interface{})["message"])

	status, out = send(t, app, "GET", "/private", bearer(t, Caller{AccountID: uuid.New(), Role: roles.Government}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, roles.Government, out["role"])

	status, _ = send(t, app, "GET", "/public", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = send(t, app, "GET", "/public", map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuthorizePermission(t *testing.T) {
	app := fiber.New()
	app.Use(Authenticate(testSecret))
	app.Post("/purchase", AuthorizePermission(constants.PurchaseCredits), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/unknown", AuthorizePermission("no_such_permission"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	status, _ := send(t, app, "POST", "/purchase", bearer(t, Caller{AccountID: uuid.New(), Role: roles.Company}))
	assert.Equal(t, fiber.StatusOK, status)

	status, out := send(t, app, "POST", "/purchase", bearer(t, Caller{AccountID: uuid.New(), Role: roles.Individual}))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "User is Forbidden from performing this action", out["error"].(map[string]interface{})["message"])

	status, _ = send(t, app, "POST", "/purchase", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out = send(t, app, "POST", "/unknown", bearer(t, Caller{AccountID: uuid.New(), Role: roles.Company}))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Permission configuration error", out["error"].(map[string]interface{})["message"])
}

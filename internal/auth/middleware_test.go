package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddlewareHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	refresh, err := GenerateRefreshToken("dana", RoleAdmin, "secret")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Empty header", "", http.StatusUnauthorized},
		{"Invalid format", "Token abc", http.StatusUnauthorized},
		{"Empty token", "Bearer ", http.StatusUnauthorized},
		{"Garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"Refresh token", "Bearer " + refresh, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			c.Request = req

			AuthMiddleware("secret")(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware("secret"), RequireRole(RoleAdmin))

	router.GET("/admin", func(c *gin.Context) {
		operator, ok := GetOperator(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"operator": operator})
	})

	token, err := GenerateAccessToken("dana", RoleAdmin, "secret")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator":"dana"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		role           any
		expectedStatus int
	}{
		{"Correct role", RoleAdmin, http.StatusOK},
		{"Missing role", nil, http.StatusUnauthorized},
		{"Wrong role type", 123, http.StatusUnauthorized},
		{"Insufficient role", "viewer", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.role != nil {
				c.Set("role", tt.role)
			}
			c.Request = httptest.NewRequest("GET", "/", nil)

			RequireRole(RoleAdmin)(c)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestGetOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		value    any
		expected string
		ok       bool
	}{
		{"Valid operator", "dana", "dana", true},
		{"Missing operator", nil, "", false},
		{"Wrong type", 42, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.value != nil {
				c.Set("operator", tt.value)
			}

			got, ok := GetOperator(c)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestRefreshHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/refresh", RefreshHandler("secret"))

	refresh, err := GenerateRefreshToken("dana", RoleAdmin, "secret")
	require.NoError(t, err)
	access, err := GenerateAccessToken("dana", RoleAdmin, "secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"refresh token", `{"refresh_token":"` + refresh + `"}`, http.StatusOK},
		{"access token rejected", `{"refresh_token":"` + access + `"}`, http.StatusUnauthorized},
		{"garbage", `{"refresh_token":"abc"}`, http.StatusUnauthorized},
		{"missing field", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/auth/refresh", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "access_token")
			}
		})
	}
}

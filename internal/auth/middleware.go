package auth

import (
	"errors"
	"net/http"
	"strings"

	"slotbook/internal/api"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid authorization header format"})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Token is empty"})
			return
		}

		claims, err := ValidateToken(tokenString, accessTokenSecret)
		if err != nil {
			msg := "Invalid or malformed token"
			switch {
			case errors.Is(err, ErrTokenExpired):
				msg = "Token expired"
			case errors.Is(err, ErrInvalidTokenType):
				msg = "Invalid token type"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msg})
			return
		}

		if claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Access token required"})
			return
		}

		c.Set("operator", claims.Operator)
		c.Set("role", claims.Role)

		c.Next()
	}
}

func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Role not found"})
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid role type"})
			return
		}

		if roleStr != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: "Insufficient permissions"})
			return
		}

		c.Next()
	}
}

func GetOperator(c *gin.Context) (string, bool) {
	v, exists := c.Get("operator")
	if !exists {
		return "", false
	}

	operator, ok := v.(string)
	if !ok || operator == "" {
		return "", false
	}

	return operator, true
}

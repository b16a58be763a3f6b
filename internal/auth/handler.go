package auth

import (
	"net/http"

	"slotbook/internal/api"

	"github.com/gin-gonic/gin"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// @Summary      Exchange a refresh token for a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body auth.RefreshRequest true "Refresh token"
// @Success      200 {object} auth.TokenResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      401 {object} api.ErrorResponse
// @Router       /auth/refresh [post]
func RefreshHandler(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			api.RespondWithBindError(c, err)
			return
		}

		accessToken, _, err := RefreshAccessToken(req.RefreshToken, secret, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid refresh token"})
			return
		}

		c.JSON(http.StatusOK, TokenResponse{AccessToken: accessToken})
	}
}

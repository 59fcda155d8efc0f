package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/config"
	"fairplay-backend/internal/services"
)

func abort(c *gin.Context, status int, code apperr.Code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				abort(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "Invalid authorization format")
				return
			}
			tokenString = parts[1]
		} else {
			// Browsers cannot set headers on a websocket upgrade.
			tokenString = c.Query("token")
			if tokenString == "" {
				abort(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "Authorization header required")
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, apperr.CodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set("account_id", claims.AccountID)
		c.Set("session_id", claims.SessionID)
		c.Set("admin", claims.Admin)

		c.Next()
	}
}

// AdminGuard must run after AuthMiddleware.
func AdminGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("admin") {
			abort(c, http.StatusForbidden, apperr.CodeForbidden, "Admin token required")
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware counts plays and reveals per account. A nil limiter
// lets everything through.
func RateLimitMiddleware(limiter services.RateLimiter, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetString("account_id")
		if limiter == nil || accountID == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var action string
		var limit int
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}

		switch {
		case strings.HasSuffix(path, "/games/play"), strings.HasSuffix(path, "/games/mines/start"):
			action = "play"
			limit = cfg.RateLimitPlays
		case strings.HasSuffix(path, "/games/mines/reveal"):
			action = "reveal"
			limit = cfg.RateLimitReveals
		default:
			c.Next()
			return
		}
		if limit <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), accountID, action, limit, window)
		if err != nil {
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, apperr.CodeInternal, "Internal server error")
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"code":        apperr.CodeRateLimited,
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

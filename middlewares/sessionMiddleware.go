package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/models"
	"bitbucket.org/stoagroup/leasing_backend/utils"
)

// SessionMiddleware resolves the session token header into the request
// context. Machine clients may send a signed API token as
// "Authorization: Bearer <jwt>" instead. Requests without either pass
// through; handlers that need a session sit behind RequireSession.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			if auth := c.Request.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				resolveAPIToken(c, strings.TrimPrefix(auth, "Bearer "))
				return
			}
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		if user, err := models.GetUserByUsername(ctx, username); err == nil {
			ctx = utils.SetUserIdInContext(ctx, user.ID)
			ctx = utils.SetIsAdminInContext(ctx, user.Role == models.UserRoleAdmin)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// resolveAPIToken validates a signed API token and loads its claims into
// the request context.
func resolveAPIToken(c *gin.Context, raw string) {
	parsed, err := utils.JwtValidate(raw)
	if err != nil || !parsed.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return
	}
	claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
	if !ok || claims.Username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return
	}

	ctx := utils.SetUsernameInContext(c.Request.Context(), claims.Username)
	ctx = utils.SetUserIdInContext(ctx, claims.ID)
	ctx = utils.SetIsAdminInContext(ctx, claims.Role == string(models.UserRoleAdmin))
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// RequireSession rejects requests that did not resolve to a session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects sessions without the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context())
		if !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

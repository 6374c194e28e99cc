package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware reads a bearer token when present and puts the user on the
// request context. Requests without a token pass through unauthenticated.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := auth[len(bearer):]

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		ctx = utils.SetUserNameInContext(ctx, claim.Name)
		ctx = utils.SetIsStaffInContext(ctx, claim.IsStaff)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects requests without an authenticated user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireStaff lets only staff users through.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if staff, ok := utils.GetIsStaffFromContext(c.Request.Context()); !ok || !staff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

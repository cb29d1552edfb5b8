package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/apicredits/internal/usercontext"
)

const contextUserIDKey = "user_id"

// UserContext resolves the caller from X-User-Id, falling back to the
// configured default user.
func (s *Server) UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := usercontext.Resolve(c.GetHeader(usercontext.HeaderUserID), s.cfg.DefaultUserID)
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(usercontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func userIDFromRequest(c *gin.Context) string {
	userID, _ := usercontext.UserIDFromContext(c.Request.Context())
	return userID
}

package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
	"github.com/smallbiznis/apicredits/internal/usercontext"
)

const (
	contextAPIKeyIDKey     = "api_key_id"
	contextAPIKeyScopesKey = "api_key_scopes"
)

// APIKeyRequired authenticates requests using an API key only.
// The caller identity is the key owner; X-User-Id is ignored.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !hasScope(key.Scopes, apikeydomain.ScopeRequestsWrite) {
			AbortWithError(c, ErrForbidden)
			return
		}

		scopes := make([]string, 0, len(key.Scopes))
		scopes = append(scopes, key.Scopes...)
		c.Set(contextAPIKeyIDKey, key.KeyID)
		c.Set(contextAPIKeyScopesKey, scopes)
		c.Set(contextUserIDKey, key.UserID)

		c.Request = c.Request.WithContext(usercontext.WithUserID(c.Request.Context(), key.UserID))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func hasScope(scopes []string, want string) bool {
	for _, scope := range scopes {
		if scope == want {
			return true
		}
	}
	return false
}

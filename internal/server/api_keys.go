package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
)

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context(), userIDFromRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if keys == nil {
		keys = []apikeydomain.Response{}
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), userIDFromRequest(c), apikeydomain.CreateRequest{
		Name:   strings.TrimSpace(req.Name),
		Scopes: req.Scopes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"apiKey": resp})
}

// RevokeAPIKey accepts the key id as a path parameter or as ?id=.
func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("id"))
	if keyID == "" {
		keyID = strings.TrimSpace(c.Query("id"))
	}
	if keyID == "" {
		AbortWithError(c, apikeydomain.ErrInvalidKeyID)
		return
	}

	if err := s.apiKeySvc.Revoke(c.Request.Context(), userIDFromRequest(c), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("id"))
	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), userIDFromRequest(c), keyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"apiKey": resp})
}

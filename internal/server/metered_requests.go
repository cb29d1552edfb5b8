package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
)

// RecordRequest charges the key owner for one API call and stores it for
// history and usage reporting.
func (s *Server) RecordRequest(c *gin.Context) {
	var req meteringdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = userIDFromRequest(c)
	req.KeyID = c.GetString(contextAPIKeyIDKey)

	res, err := s.meteringSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

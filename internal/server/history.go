package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
)

func (s *Server) ListHistory(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, meteringdomain.ErrInvalidLimit)
		return
	}

	requests, err := s.meteringSvc.History(c.Request.Context(), meteringdomain.HistoryFilter{
		UserID: userIDFromRequest(c),
		Limit:  limit,
		Method: strings.TrimSpace(c.Query("method")),
		Status: strings.TrimSpace(c.Query("status")),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if requests == nil {
		requests = []meteringdomain.RequestView{}
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (s *Server) GetUsage(c *gin.Context) {
	days, err := parseOptionalInt(c.Query("days"))
	if err != nil {
		AbortWithError(c, meteringdomain.ErrInvalidDays)
		return
	}

	report, err := s.meteringSvc.Usage(c.Request.Context(), userIDFromRequest(c), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
)

const headerIdempotencyKey = "Idempotency-Key"

type addCreditsRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *Server) GetCredits(c *gin.Context) {
	balance, err := s.creditSvc.Balance(c.Request.Context(), userIDFromRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

// AddCredits is a manual top-up. Repeating a request with the same
// Idempotency-Key applies it once.
func (s *Server) AddCredits(c *gin.Context) {
	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseWholeNumber(req.Amount)
	if err != nil || amount <= 0 || amount > creditdomain.MaxAmount {
		AbortWithError(c, creditdomain.ErrInvalidAmount)
		return
	}

	balance, err := s.creditSvc.Adjust(c.Request.Context(), creditdomain.AdjustRequest{
		UserID:         userIDFromRequest(c),
		Amount:         amount,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "credits": balance})
}

func (s *Server) ListCreditPackages(c *gin.Context) {
	c.JSON(http.StatusOK, s.packages.Get())
}

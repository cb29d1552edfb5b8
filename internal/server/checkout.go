package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/apicredits/internal/payment/checkout"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
)

type createCheckoutRequest struct {
	Amount  json.RawMessage `json:"amount"`
	Credits json.RawMessage `json:"credits"`
}

// CreateCheckout opens a provider-hosted payment page for a credit bundle.
// amount is in dollars and credits is the bundle size.
func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := parseDecimal(req.Amount)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}
	credits, err := parseWholeNumber(req.Credits)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidCredits)
		return
	}

	session, err := s.checkoutSvc.Create(c.Request.Context(), checkout.Request{
		UserID:  userIDFromRequest(c),
		Amount:  amount,
		Credits: credits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

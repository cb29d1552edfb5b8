package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/apicredits/internal/payment/adapters/stripe"
)

// Stripe signs the exact bytes it sends, so bodies are capped but never
// re-encoded.
const maxWebhookBodyBytes = 1 << 20

// HandleStripeWebhook acknowledges every event that passes signature checks,
// including ignored types and incomplete metadata, so the provider stops
// retrying. Only storage failures return 5xx.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.webhookSvc.Receive(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeaderName)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

package repository

import (
	"strings"

	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
)

// Matches applies the history filter to a single record. Method and search
// are case-insensitive; search looks at the endpoint and the request id.
func Matches(rec meteringdomain.RequestRecord, filter meteringdomain.HistoryFilter) bool {
	if method := strings.TrimSpace(filter.Method); method != "" && !strings.EqualFold(method, "all") {
		if !strings.EqualFold(rec.Method, method) {
			return false
		}
	}
	switch filter.Status {
	case meteringdomain.StatusSuccess:
		if !rec.Succeeded() {
			return false
		}
	case meteringdomain.StatusError:
		if rec.Succeeded() {
			return false
		}
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		if !strings.Contains(strings.ToLower(rec.Endpoint), search) &&
			!strings.Contains(strings.ToLower(rec.ID), search) {
			return false
		}
	}
	return true
}

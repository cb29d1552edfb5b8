package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
	DefaultUsageDays    = 7
	MaxUsageDays        = 90
	DefaultCredits      = 1

	StatusSuccess = "success"
	StatusError   = "error"
)

type Repository interface {
	Insert(ctx context.Context, rec *RequestRecord) error
	List(ctx context.Context, filter HistoryFilter) ([]RequestRecord, error)
	// Since returns every record of userID at or after from, oldest first.
	Since(ctx context.Context, userID string, from time.Time) ([]RequestRecord, error)
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*RecordResult, error)
	History(ctx context.Context, filter HistoryFilter) ([]RequestView, error)
	Usage(ctx context.Context, userID string, days int) (*UsageReport, error)
}

type RecordRequest struct {
	UserID         string
	KeyID          string
	Method         string            `json:"method"`
	Endpoint       string            `json:"endpoint"`
	StatusCode     int               `json:"statusCode"`
	DurationMs     int64             `json:"durationMs"`
	Credits        int64             `json:"credits"`
	RequestHeaders map[string]string `json:"requestHeaders"`
	RequestBody    json.RawMessage   `json:"request"`
	ResponseBody   json.RawMessage   `json:"response"`
}

type RecordResult struct {
	Request RequestView `json:"request"`
	Credits int64       `json:"credits"`
}

type HistoryFilter struct {
	UserID string
	Limit  int
	Method string
	Status string
	Search string
}

type RequestView struct {
	ID            string      `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	Endpoint      string      `json:"endpoint"`
	Method        string      `json:"method"`
	StatusCode    int         `json:"statusCode"`
	StatusMessage string      `json:"statusMessage"`
	Duration      int64       `json:"duration"`
	Credits       int64       `json:"credits"`
	Request       PayloadView `json:"request"`
	Response      PayloadView `json:"response"`
}

type PayloadView struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body"`
}

type DailyUsage struct {
	Date            string  `json:"date"`
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	Credits         int64   `json:"credits"`
}

type UsageSummary struct {
	TotalRequests   int64   `json:"totalRequests"`
	TotalCredits    int64   `json:"totalCredits"`
	AvgSuccessRate  float64 `json:"avgSuccessRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
}

type UsageReport struct {
	Daily   []DailyUsage `json:"daily"`
	Summary UsageSummary `json:"summary"`
}

var (
	ErrInvalidUserID     = errors.New("invalid_user_id")
	ErrInvalidMethod     = errors.New("invalid_method")
	ErrInvalidEndpoint   = errors.New("invalid_endpoint")
	ErrInvalidStatusCode = errors.New("invalid_status_code")
	ErrInvalidDuration   = errors.New("invalid_duration")
	ErrInvalidCredits    = errors.New("invalid_credits")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidLimit      = errors.New("invalid_limit")
	ErrInvalidDays       = errors.New("invalid_days")
	ErrInvalidPayload    = errors.New("invalid_payload")
)

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/apicredits/internal/clock"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
	obsmetrics "github.com/smallbiznis/apicredits/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Header values that are never persisted verbatim.
var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       meteringdomain.Repository
	Credits    creditdomain.Service
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	repo       meteringdomain.Repository
	credits    creditdomain.Service
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) meteringdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:        p.Log.Named("metering.service"),
		repo:       p.Repo,
		credits:    p.Credits,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

// Record charges the caller for one API call and stores it. Nothing is stored
// when the balance cannot cover the charge, and the charge is refunded when
// the record cannot be stored.
func (s *Service) Record(ctx context.Context, req meteringdomain.RecordRequest) (*meteringdomain.RecordResult, error) {
	rec, err := s.buildRecord(req)
	if err != nil {
		return nil, err
	}

	balance, err := s.credits.Consume(ctx, rec.UserID, rec.Credits)
	if err != nil {
		if errors.Is(err, creditdomain.ErrInsufficientCredits) {
			s.log.Info("metered request rejected",
				zap.String("user_id", rec.UserID),
				zap.String("key_id", rec.KeyID),
				zap.Int64("credits", rec.Credits),
				zap.Int64("balance", balance),
			)
		}
		return nil, err
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.log.Error("failed to store request record",
			zap.String("request_record_id", rec.ID),
			zap.String("user_id", rec.UserID),
			zap.Int64("credits", rec.Credits),
			zap.Error(err),
		)
		s.refund(ctx, rec)
		return nil, fmt.Errorf("store request record: %w", err)
	}

	s.obsMetrics.RecordMeteredRequest(ctx, rec.StatusCode)
	return &meteringdomain.RecordResult{Request: toView(*rec), Credits: balance}, nil
}

// refund returns the credits of a record that was charged but not stored.
// The grant is keyed by the record id, so a repeated refund applies once.
func (s *Service) refund(ctx context.Context, rec *meteringdomain.RequestRecord) {
	_, err := s.credits.Grant(context.WithoutCancel(ctx), creditdomain.GrantRequest{
		TransactionID: "refund:" + rec.ID,
		UserID:        rec.UserID,
		Amount:        rec.Credits,
		Source:        creditdomain.SourceRefund,
	})
	if err != nil {
		s.log.Error("failed to refund request credits",
			zap.String("request_record_id", rec.ID),
			zap.String("user_id", rec.UserID),
			zap.Int64("credits", rec.Credits),
			zap.Error(err),
		)
	}
}

func (s *Service) History(ctx context.Context, filter meteringdomain.HistoryFilter) ([]meteringdomain.RequestView, error) {
	userID := strings.TrimSpace(filter.UserID)
	if userID == "" {
		return nil, meteringdomain.ErrInvalidUserID
	}
	filter.UserID = userID

	switch {
	case filter.Limit == 0:
		filter.Limit = meteringdomain.DefaultHistoryLimit
	case filter.Limit < 0:
		return nil, meteringdomain.ErrInvalidLimit
	case filter.Limit > meteringdomain.MaxHistoryLimit:
		filter.Limit = meteringdomain.MaxHistoryLimit
	}

	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	switch filter.Status {
	case "", "all":
		filter.Status = ""
	case meteringdomain.StatusSuccess, meteringdomain.StatusError:
	default:
		return nil, meteringdomain.ErrInvalidStatus
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]meteringdomain.RequestView, 0, len(records))
	for _, rec := range records {
		views = append(views, toView(rec))
	}
	return views, nil
}

// Usage aggregates the last days calendar days (UTC), today first.
func (s *Service) Usage(ctx context.Context, userID string, days int) (*meteringdomain.UsageReport, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, meteringdomain.ErrInvalidUserID
	}
	switch {
	case days == 0:
		days = meteringdomain.DefaultUsageDays
	case days < 0:
		return nil, meteringdomain.ErrInvalidDays
	case days > meteringdomain.MaxUsageDays:
		days = meteringdomain.MaxUsageDays
	}

	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))

	records, err := s.repo.Since(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	return aggregate(records, today, days), nil
}

type dayBucket struct {
	requests   int64
	successes  int64
	durationMs int64
	credits    int64
}

func aggregate(records []meteringdomain.RequestRecord, today time.Time, days int) *meteringdomain.UsageReport {
	buckets := make(map[string]*dayBucket, days)
	for _, rec := range records {
		key := rec.Timestamp.UTC().Format(time.DateOnly)
		b, ok := buckets[key]
		if !ok {
			b = &dayBucket{}
			buckets[key] = b
		}
		b.requests++
		if rec.Succeeded() {
			b.successes++
		}
		b.durationMs += rec.DurationMs
		b.credits += rec.Credits
	}

	report := &meteringdomain.UsageReport{Daily: make([]meteringdomain.DailyUsage, 0, days)}
	var (
		activeDays     int
		sumSuccessRate float64
		sumAvgResponse float64
	)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format(time.DateOnly)
		row := meteringdomain.DailyUsage{Date: date}
		if b, ok := buckets[date]; ok && b.requests > 0 {
			row.Requests = b.requests
			row.Credits = b.credits
			row.SuccessRate = round2(float64(b.successes) / float64(b.requests) * 100)
			row.AvgResponseTime = round2(float64(b.durationMs) / float64(b.requests))

			activeDays++
			sumSuccessRate += row.SuccessRate
			sumAvgResponse += row.AvgResponseTime
		}
		report.Summary.TotalRequests += row.Requests
		report.Summary.TotalCredits += row.Credits
		report.Daily = append(report.Daily, row)
	}
	if activeDays > 0 {
		report.Summary.AvgSuccessRate = round2(sumSuccessRate / float64(activeDays))
		report.Summary.AvgResponseTime = round2(sumAvgResponse / float64(activeDays))
	}
	return report
}

func (s *Service) buildRecord(req meteringdomain.RecordRequest) (*meteringdomain.RequestRecord, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, meteringdomain.ErrInvalidUserID
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if _, ok := allowedMethods[method]; !ok {
		return nil, meteringdomain.ErrInvalidMethod
	}
	endpoint := strings.TrimSpace(req.Endpoint)
	if !strings.HasPrefix(endpoint, "/") || len(endpoint) > 2048 {
		return nil, meteringdomain.ErrInvalidEndpoint
	}
	if req.StatusCode < 100 || req.StatusCode > 599 {
		return nil, meteringdomain.ErrInvalidStatusCode
	}
	if req.DurationMs < 0 {
		return nil, meteringdomain.ErrInvalidDuration
	}
	credits := req.Credits
	switch {
	case credits == 0:
		credits = meteringdomain.DefaultCredits
	case credits < 0, credits > creditdomain.MaxAmount:
		return nil, meteringdomain.ErrInvalidCredits
	}

	headers, err := encodeHeaders(req.RequestHeaders)
	if err != nil {
		return nil, err
	}
	requestBody, err := encodeBody(req.RequestBody)
	if err != nil {
		return nil, err
	}
	responseBody, err := encodeBody(req.ResponseBody)
	if err != nil {
		return nil, err
	}

	statusMessage := http.StatusText(req.StatusCode)
	if statusMessage == "" {
		statusMessage = "Unknown"
	}

	return &meteringdomain.RequestRecord{
		ID:             "req_" + strings.ToLower(ulid.Make().String()),
		UserID:         userID,
		KeyID:          strings.TrimSpace(req.KeyID),
		Method:         method,
		Endpoint:       endpoint,
		StatusCode:     req.StatusCode,
		StatusMessage:  statusMessage,
		DurationMs:     req.DurationMs,
		Credits:        credits,
		RequestHeaders: headers,
		RequestBody:    requestBody,
		ResponseBody:   responseBody,
		Timestamp:      s.clock.Now().UTC(),
	}, nil
}

func encodeHeaders(headers map[string]string) (datatypes.JSON, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	clean := make(map[string]string, len(headers))
	for name, value := range headers {
		if _, redact := redactedHeaders[strings.ToLower(strings.TrimSpace(name))]; redact {
			value = "[redacted]"
		}
		clean[name] = value
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func encodeBody(body json.RawMessage) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, meteringdomain.ErrInvalidPayload
	}
	return datatypes.JSON(trimmed), nil
}

func toView(rec meteringdomain.RequestRecord) meteringdomain.RequestView {
	view := meteringdomain.RequestView{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp,
		Endpoint:      rec.Endpoint,
		Method:        rec.Method,
		StatusCode:    rec.StatusCode,
		StatusMessage: rec.StatusMessage,
		Duration:      rec.DurationMs,
		Credits:       rec.Credits,
		Request:       meteringdomain.PayloadView{Body: jsonOrNull(rec.RequestBody)},
		Response:      meteringdomain.PayloadView{Body: jsonOrNull(rec.ResponseBody)},
	}
	if len(rec.RequestHeaders) > 0 {
		var headers map[string]string
		if err := json.Unmarshal(rec.RequestHeaders, &headers); err == nil {
			view.Request.Headers = headers
		}
	}
	return view
}

func jsonOrNull(raw datatypes.JSON) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(raw)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/apicredits/internal/clock"
	"github.com/smallbiznis/apicredits/internal/config"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	creditrepo "github.com/smallbiznis/apicredits/internal/credit/repository"
	creditservice "github.com/smallbiznis/apicredits/internal/credit/service"
	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
	"github.com/smallbiznis/apicredits/internal/metering/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc     meteringdomain.Service
	credits creditdomain.Service
	clock   *clock.FakeClock
}

func newFixture(t *testing.T, initial int64) fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	credits := creditservice.NewService(creditservice.Params{
		Cfg:   config.Config{CreditsInitialBalance: initial},
		Log:   zap.NewNop(),
		GenID: node,
		Store: creditrepo.NewMemoryStore(),
	})
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		Log:     zap.NewNop(),
		Repo:    repository.NewMemoryRepository(),
		Credits: credits,
		Clock:   clk,
	})
	return fixture{svc: svc, credits: credits, clock: clk}
}

func record(t *testing.T, f fixture, method string, status int, duration int64) *meteringdomain.RecordResult {
	t.Helper()
	res, err := f.svc.Record(context.Background(), meteringdomain.RecordRequest{
		UserID:     "user_1",
		KeyID:      "key_1",
		Method:     method,
		Endpoint:   "/v1/search",
		StatusCode: status,
		DurationMs: duration,
	})
	require.NoError(t, err)
	return res
}

func TestRecordConsumesCredits(t *testing.T) {
	f := newFixture(t, 10)

	res, err := f.svc.Record(context.Background(), meteringdomain.RecordRequest{
		UserID:         "user_1",
		KeyID:          "key_1",
		Method:         "post",
		Endpoint:       "/v1/embeddings",
		StatusCode:     201,
		DurationMs:     42,
		Credits:        3,
		RequestHeaders: map[string]string{"Authorization": "Bearer sk_secret", "Content-Type": "application/json"},
		RequestBody:    json.RawMessage(`{"input":"hello"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.Credits)
	assert.Equal(t, "POST", res.Request.Method)
	assert.Equal(t, "Created", res.Request.StatusMessage)
	assert.Equal(t, int64(3), res.Request.Credits)
	assert.Len(t, res.Request.ID, 30)
	assert.Equal(t, "[redacted]", res.Request.Request.Headers["Authorization"])
	assert.Equal(t, "application/json", res.Request.Request.Headers["Content-Type"])
	assert.JSONEq(t, `{"input":"hello"}`, string(res.Request.Request.Body))
	assert.Equal(t, "null", string(res.Request.Response.Body))
}

func TestRecordDefaultsToOneCredit(t *testing.T) {
	f := newFixture(t, 5)
	res := record(t, f, "GET", 200, 10)
	assert.Equal(t, int64(4), res.Credits)
	assert.Equal(t, int64(1), res.Request.Credits)
}

func TestRecordRejectsWhenBalanceTooLow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, meteringdomain.RecordRequest{
		UserID: "user_1", Method: "GET", Endpoint: "/v1/x", StatusCode: 200, Credits: 2,
	})
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	history, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1"})
	require.NoError(t, err)
	assert.Empty(t, history)

	balance, err := f.credits.Balance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

type failingRepository struct {
	meteringdomain.Repository
	inserts int
}

func (r *failingRepository) Insert(ctx context.Context, rec *meteringdomain.RequestRecord) error {
	r.inserts++
	return errors.New("disk full")
}

func TestRecordRefundsWhenStoreFails(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	repo := &failingRepository{Repository: repository.NewMemoryRepository()}
	svc := NewService(Params{Log: zap.NewNop(), Repo: repo, Credits: f.credits, Clock: f.clock})

	_, err := svc.Record(ctx, meteringdomain.RecordRequest{
		UserID: "user_1", Method: "GET", Endpoint: "/v1/x", StatusCode: 200, Credits: 4,
	})
	require.Error(t, err)
	assert.Equal(t, 1, repo.inserts)

	balance, err := f.credits.Balance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	history, err := svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	valid := meteringdomain.RecordRequest{UserID: "user_1", Method: "GET", Endpoint: "/v1/x", StatusCode: 200}

	cases := []struct {
		name   string
		mutate func(*meteringdomain.RecordRequest)
		want   error
	}{
		{"blank user", func(r *meteringdomain.RecordRequest) { r.UserID = " " }, meteringdomain.ErrInvalidUserID},
		{"unknown method", func(r *meteringdomain.RecordRequest) { r.Method = "FETCH" }, meteringdomain.ErrInvalidMethod},
		{"relative endpoint", func(r *meteringdomain.RecordRequest) { r.Endpoint = "v1/x" }, meteringdomain.ErrInvalidEndpoint},
		{"status too low", func(r *meteringdomain.RecordRequest) { r.StatusCode = 99 }, meteringdomain.ErrInvalidStatusCode},
		{"status too high", func(r *meteringdomain.RecordRequest) { r.StatusCode = 600 }, meteringdomain.ErrInvalidStatusCode},
		{"negative duration", func(r *meteringdomain.RecordRequest) { r.DurationMs = -1 }, meteringdomain.ErrInvalidDuration},
		{"negative credits", func(r *meteringdomain.RecordRequest) { r.Credits = -1 }, meteringdomain.ErrInvalidCredits},
		{"too many credits", func(r *meteringdomain.RecordRequest) { r.Credits = creditdomain.MaxAmount + 1 }, meteringdomain.ErrInvalidCredits},
		{"broken body", func(r *meteringdomain.RecordRequest) { r.RequestBody = json.RawMessage(`{`) }, meteringdomain.ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := f.svc.Record(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	balance, err := f.credits.Balance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestHistoryFilters(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	first := record(t, f, "GET", 200, 10)
	f.clock.Advance(time.Second)
	record(t, f, "POST", 500, 20)
	f.clock.Advance(time.Second)
	last := record(t, f, "GET", 404, 30)

	all, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, last.Request.ID, all[0].ID)
	assert.Equal(t, first.Request.ID, all[2].ID)

	gets, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Method: "get"})
	require.NoError(t, err)
	assert.Len(t, gets, 2)

	errs, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Status: "error"})
	require.NoError(t, err)
	assert.Len(t, errs, 2)

	ok, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Status: "success"})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, first.Request.ID, ok[0].ID)

	byID, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Search: first.Request.ID})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	limited, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_2"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistoryRejectsBadInput(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Limit: -1})
	assert.ErrorIs(t, err, meteringdomain.ErrInvalidLimit)
	_, err = f.svc.History(ctx, meteringdomain.HistoryFilter{UserID: "user_1", Status: "pending"})
	assert.ErrorIs(t, err, meteringdomain.ErrInvalidStatus)
	_, err = f.svc.History(ctx, meteringdomain.HistoryFilter{})
	assert.ErrorIs(t, err, meteringdomain.ErrInvalidUserID)
}

func TestUsageAggregatesByDay(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	// Two days ago: one success, one failure.
	f.clock.Advance(-48 * time.Hour)
	record(t, f, "GET", 200, 100)
	record(t, f, "GET", 500, 200)
	// Today: one success.
	f.clock.Advance(48 * time.Hour)
	record(t, f, "GET", 200, 50)

	report, err := f.svc.Usage(ctx, "user_1", 3)
	require.NoError(t, err)
	require.Len(t, report.Daily, 3)

	assert.Equal(t, "2026-03-10", report.Daily[0].Date)
	assert.Equal(t, int64(1), report.Daily[0].Requests)
	assert.Equal(t, 100.0, report.Daily[0].SuccessRate)
	assert.Equal(t, 50.0, report.Daily[0].AvgResponseTime)

	assert.Equal(t, "2026-03-09", report.Daily[1].Date)
	assert.Zero(t, report.Daily[1].Requests)
	assert.Zero(t, report.Daily[1].SuccessRate)

	assert.Equal(t, "2026-03-08", report.Daily[2].Date)
	assert.Equal(t, int64(2), report.Daily[2].Requests)
	assert.Equal(t, 50.0, report.Daily[2].SuccessRate)
	assert.Equal(t, 150.0, report.Daily[2].AvgResponseTime)
	assert.Equal(t, int64(2), report.Daily[2].Credits)

	assert.Equal(t, int64(3), report.Summary.TotalRequests)
	assert.Equal(t, int64(3), report.Summary.TotalCredits)
	assert.Equal(t, 75.0, report.Summary.AvgSuccessRate)
	assert.Equal(t, 100.0, report.Summary.AvgResponseTime)
}

func TestUsageDaysBounds(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	report, err := f.svc.Usage(ctx, "user_1", 0)
	require.NoError(t, err)
	assert.Len(t, report.Daily, meteringdomain.DefaultUsageDays)

	report, err = f.svc.Usage(ctx, "user_1", 365)
	require.NoError(t, err)
	assert.Len(t, report.Daily, meteringdomain.MaxUsageDays)

	_, err = f.svc.Usage(ctx, "user_1", -1)
	assert.ErrorIs(t, err, meteringdomain.ErrInvalidDays)
}

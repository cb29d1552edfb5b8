package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
)

type memoryRepo struct {
	mu      sync.RWMutex
	records map[string][]meteringdomain.RequestRecord // by user, append order
}

func NewMemoryRepository() meteringdomain.Repository {
	return &memoryRepo{records: make(map[string][]meteringdomain.RequestRecord)}
}

func (r *memoryRepo) Insert(_ context.Context, rec *meteringdomain.RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.UserID] = append(r.records[rec.UserID], *rec)
	return nil
}

func (r *memoryRepo) List(_ context.Context, filter meteringdomain.HistoryFilter) ([]meteringdomain.RequestRecord, error) {
	r.mu.RLock()
	all := append([]meteringdomain.RequestRecord(nil), r.records[filter.UserID]...)
	r.mu.RUnlock()

	sortNewestFirst(all)
	out := make([]meteringdomain.RequestRecord, 0, filter.Limit)
	for _, rec := range all {
		if !Matches(rec, filter) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) Since(_ context.Context, userID string, from time.Time) ([]meteringdomain.RequestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]meteringdomain.RequestRecord, 0)
	for _, rec := range r.records[userID] {
		if !rec.Timestamp.Before(from) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func sortNewestFirst(records []meteringdomain.RequestRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID > records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

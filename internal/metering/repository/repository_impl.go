package repository

import (
	"context"
	"strings"
	"time"

	meteringdomain "github.com/smallbiznis/apicredits/internal/metering/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func NewSQLRepository(db *gorm.DB) meteringdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, rec *meteringdomain.RequestRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repo) List(ctx context.Context, filter meteringdomain.HistoryFilter) ([]meteringdomain.RequestRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&meteringdomain.RequestRecord{}).
		Where("user_id = ?", filter.UserID)

	if method := strings.TrimSpace(filter.Method); method != "" && !strings.EqualFold(method, "all") {
		query = query.Where("UPPER(method) = ?", strings.ToUpper(method))
	}
	switch filter.Status {
	case meteringdomain.StatusSuccess:
		query = query.Where("status_code < ?", 400)
	case meteringdomain.StatusError:
		query = query.Where("status_code >= ?", 400)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query = query.Where("(LOWER(endpoint) LIKE ? ESCAPE '!' OR LOWER(id) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []meteringdomain.RequestRecord
	if err := query.Order("occurred_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Since(ctx context.Context, userID string, from time.Time) ([]meteringdomain.RequestRecord, error) {
	var records []meteringdomain.RequestRecord
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "key_id", "method", "endpoint", "status_code", "status_message", "duration_ms", "credits", "occurred_at").
		Where("user_id = ? AND occurred_at >= ?", userID, from).
		Order("occurred_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(value)
}

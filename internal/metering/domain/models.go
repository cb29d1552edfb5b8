// Package domain contains the request records behind history and usage reporting.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// RequestRecord stores a single metered API call.
type RequestRecord struct {
	ID             string         `gorm:"primaryKey;type:varchar(32)"`
	UserID         string         `gorm:"column:user_id;type:varchar(191);not null;index:ix_request_records_user_ts,priority:1"`
	KeyID          string         `gorm:"column:key_id;type:varchar(64);not null"`
	Method         string         `gorm:"type:varchar(16);not null"`
	Endpoint       string         `gorm:"type:varchar(2048);not null"`
	StatusCode     int            `gorm:"column:status_code;not null"`
	StatusMessage  string         `gorm:"column:status_message;type:varchar(64);not null"`
	DurationMs     int64          `gorm:"column:duration_ms;not null"`
	Credits        int64          `gorm:"not null"`
	RequestHeaders datatypes.JSON `gorm:"column:request_headers"`
	RequestBody    datatypes.JSON `gorm:"column:request_body"`
	ResponseBody   datatypes.JSON `gorm:"column:response_body"`
	Timestamp      time.Time      `gorm:"column:occurred_at;not null;index:ix_request_records_user_ts,priority:2"`
}

// TableName sets the database table name.
func (RequestRecord) TableName() string { return "request_records" }

// Succeeded reports whether the call counts toward the success rate.
func (r RequestRecord) Succeeded() bool {
	return r.StatusCode < 400
}

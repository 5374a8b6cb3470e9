package domain

import (
	"time"

	"github.com/google/uuid"
)

type NoticeType string

const (
	NoticeLateRent        NoticeType = "LATE_RENT"
	NoticeEvictionWarning NoticeType = "EVICTION_WARNING"
	NoticeLeaseViolation  NoticeType = "LEASE_VIOLATION"
	NoticeGeneral         NoticeType = "GENERAL"
	NoticeMoveOut         NoticeType = "MOVE_OUT"
)

type NoticeStatus string

const (
	NoticeStatusDraft        NoticeStatus = "DRAFT"
	NoticeStatusSent         NoticeStatus = "SENT"
	NoticeStatusServed       NoticeStatus = "SERVED"
	NoticeStatusAcknowledged NoticeStatus = "ACKNOWLEDGED"
)

// PaymentResolvableNotices are the notice types that lapse once the tenant
// pays what is owed for the period.
var PaymentResolvableNotices = []NoticeType{NoticeLateRent, NoticeEvictionWarning, NoticeLeaseViolation}

// OpenNoticeStatuses are the statuses a resolvable notice can be acknowledged from.
var OpenNoticeStatuses = []NoticeStatus{NoticeStatusSent, NoticeStatusServed}

type Notice struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Type      NoticeType
	Status    NoticeStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

package service

import (
	"context"
	"time"
)

// NoticeItem names one submitted workbook.
type NoticeItem struct {
	InstanceID string
	Title      string
}

// SubmissionNotice is handed to the Notifier after a submission commits.
// Bulk is true for submit-all and false for a single-instance submit.
type SubmissionNotice struct {
	UserID      string
	UserName    string
	UserEmail   string
	Instances   []NoticeItem
	SubmittedAt time.Time
	Bulk        bool
}

// Notifier delivers submission notices (e-mail, chat, queue...).  Delivery
// mechanics live outside this package.
type Notifier interface {
	NotifySubmission(ctx context.Context, n SubmissionNotice) error
}

// NopNotifier discards notices.
type NopNotifier struct{}

func (NopNotifier) NotifySubmission(context.Context, SubmissionNotice) error { return nil }

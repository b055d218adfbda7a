// Package queue carries submission notices over RabbitMQ: a publisher that
// implements service.Notifier and a background consumer that records every
// submission in logs/submissions.log.
package queue

import (
    "time"

    "github.com/iliyamo/workbook-assignment/internal/service"
)

// SubmissionQueue is the durable queue submission events are routed to.
const SubmissionQueue = "workbook.submitted"

// SubmittedWorkbook names one workbook inside a WorkbookSubmittedEvent.
type SubmittedWorkbook struct {
    InstanceID string `json:"instance_id"`
    Title      string `json:"title"`
}

// WorkbookSubmittedEvent is published after a submission commits.  It holds
// enough for a downstream mailer to notify the coach without querying the
// primary database.
type WorkbookSubmittedEvent struct {
    UserID      string              `json:"user_id"`
    UserName    string              `json:"user_name"`
    UserEmail   string              `json:"user_email"`
    Workbooks   []SubmittedWorkbook `json:"workbooks"`
    Bulk        bool                `json:"bulk"`
    SubmittedAt string              `json:"submitted_at"`
}

// EventFromNotice converts a service notice to its wire form.
func EventFromNotice(n service.SubmissionNotice) WorkbookSubmittedEvent {
    ev := WorkbookSubmittedEvent{
        UserID:      n.UserID,
        UserName:    n.UserName,
        UserEmail:   n.UserEmail,
        Workbooks:   make([]SubmittedWorkbook, 0, len(n.Instances)),
        Bulk:        n.Bulk,
        SubmittedAt: n.SubmittedAt.UTC().Format(time.RFC3339),
    }
    for _, it := range n.Instances {
        ev.Workbooks = append(ev.Workbooks, SubmittedWorkbook{InstanceID: it.InstanceID, Title: it.Title})
    }
    return ev
}

package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/workbook-assignment/internal/logger"
)

// Consumer drains SubmissionQueue and appends one line per event to
// <dir>/submissions.log.
type Consumer struct {
    url string
    dir string
    log *logger.Logger
}

// NewConsumer returns a Consumer for the broker at url writing into dir.
func NewConsumer(url, dir string, log *logger.Logger) *Consumer {
    if log == nil {
        log = logger.Nop()
    }
    if dir == "" {
        dir = "logs"
    }
    return &Consumer{url: url, dir: dir, log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  Processing errors reject the offending message and never
// stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return nil
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("submission consumer dial failed", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return nil
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return nil
        }
        c.log.Warn("submission consumer loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return nil
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("submission consumer set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(SubmissionQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(SubmissionQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handleMessage(d.Body); err != nil {
                c.log.Error("submission consumer handle message failed", "error", err)
                _ = d.Nack(false, false) // no requeue, avoids a poison loop
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleMessage(body []byte) error {
    var ev WorkbookSubmittedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.UserID == "" {
        return errors.New("event without user_id")
    }
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, "submissions.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatEvent(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    c.log.Info("workbook submission recorded", "user_id", ev.UserID, "workbooks", len(ev.Workbooks), "bulk", ev.Bulk)
    return nil
}

func formatEvent(ev WorkbookSubmittedEvent) string {
    ids := make([]string, len(ev.Workbooks))
    titles := make([]string, len(ev.Workbooks))
    for i, w := range ev.Workbooks {
        ids[i] = w.InstanceID
        titles[i] = w.Title
    }
    kind := "single"
    if ev.Bulk {
        kind = "bulk"
    }
    return fmt.Sprintf("[%s] Workbooks submitted | kind=%s | user_id=%s | user=%q | email=%s | count=%d | instances=[%s] | titles=%q\n",
        ev.SubmittedAt, kind, ev.UserID, ev.UserName, ev.UserEmail, len(ev.Workbooks),
        strings.Join(ids, ","), strings.Join(titles, "; "))
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

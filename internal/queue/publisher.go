package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/service"
)

// Publisher sends WorkbookSubmittedEvents to RabbitMQ.  It satisfies
// service.Notifier; the services log and swallow its errors.
type Publisher struct {
    url string
    log *logger.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *logger.Logger) *Publisher {
    if log == nil {
        log = logger.Nop()
    }
    return &Publisher{url: url, log: log}
}

// NotifySubmission publishes n as a persistent message on SubmissionQueue.
// A connection is opened per call; submissions are rare enough that a
// pooled channel is not worth the reconnect bookkeeping.
func (p *Publisher) NotifySubmission(ctx context.Context, n service.SubmissionNotice) error {
    body, err := json.Marshal(EventFromNotice(n))
    if err != nil {
        return err
    }

    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
    if err != nil {
        p.log.Warn("rabbitmq dial failed", "error", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warn("rabbitmq channel open failed", "error", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(SubmissionQueue, true, false, false, false, nil); err != nil {
        p.log.Warn("rabbitmq queue declare failed", "error", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", SubmissionQueue, false, false, pub); err != nil {
        p.log.Warn("rabbitmq publish failed", "error", err)
        return err
    }
    p.log.Debug("submission event published", "user_id", n.UserID, "workbooks", len(n.Instances))
    return nil
}

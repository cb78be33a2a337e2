package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to RabbitMQ.  It dials per publish: events are
// rare compared to requests and a short-lived connection never goes stale.
// Errors are returned so callers can log them and carry on.
type Publisher struct {
    url string
    log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
    return &Publisher{url: url, log: log}
}

// Publish declares the event's durable queue and sends ev as a persistent
// JSON message on the default exchange.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
    const op = "queue.Publisher.Publish"

    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("%s: marshal: %w", op, err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("%s: dial: %w", op, err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("%s: channel: %w", op, err)
    }
    defer func() { _ = ch.Close() }()

    name := QueueFor(ev.Type)
    if _, err := ch.QueueDeclare(
        name,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    ); err != nil {
        return fmt.Errorf("%s: declare %s: %w", op, name, err)
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        MessageId:    ev.ReservationID + ":" + ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", name, false, false, msg); err != nil {
        return fmt.Errorf("%s: publish %s: %w", op, name, err)
    }
    p.log.Debug("event published", slog.String("type", ev.Type), slog.String("reservation_id", ev.ReservationID))
    return nil
}

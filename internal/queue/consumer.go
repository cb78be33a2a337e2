package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/traverum/booking-service/internal/lib/logger/sl"
)

// SettlementRetrier re-runs settlement for a reservation.  attempt counts
// the attempts made so far including the one requested.
type SettlementRetrier interface {
    RetrySettlement(ctx context.Context, reservationID string, attempt int) error
}

// ErrGiveUp marks a message that exhausted its attempts.
var ErrGiveUp = errors.New("settlement retries exhausted")

// SettlementConsumer drains the settlement.retry queue.  Each message is a
// settlement.failed event; the retry waits out an exponential backoff
// measured from the failure, so a message that sat in the queue long enough
// runs immediately.  A retry that fails again publishes a fresh event with a
// higher attempt number, so the retrier reports only errors worth
// redelivering the same message for.
type SettlementConsumer struct {
    url         string
    retrier     SettlementRetrier
    log         *slog.Logger
    maxAttempts int
    baseDelay   time.Duration
    maxDelay    time.Duration
    now         func() time.Time
    sleep       func(ctx context.Context, d time.Duration) error
}

func NewSettlementConsumer(url string, retrier SettlementRetrier, log *slog.Logger) *SettlementConsumer {
    return &SettlementConsumer{
        url:         url,
        retrier:     retrier,
        log:         log,
        maxAttempts: 8,
        baseDelay:   30 * time.Second,
        maxDelay:    time.Hour,
        now:         time.Now,
        sleep:       sleepCtx,
    }
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *SettlementConsumer) Run(ctx context.Context) error {
    const op = "queue.SettlementConsumer.Run"
    log := c.log.With(slog.String("op", op))

    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            log.Warn("dial failed, retrying", slog.Duration("backoff", backoff), sl.Err(err))
            if err := c.sleep(ctx, backoff); err != nil {
                return err
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
            return ctx.Err()
        }
        log.Warn("consume loop ended, reconnecting", sl.Err(err))
        if err := c.sleep(ctx, 2*time.Second); err != nil {
            return err
        }
    }
}

func (c *SettlementConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(1, 0, false); err != nil {
        c.log.Warn("set QoS failed", sl.Err(err))
    }
    if _, err := ch.QueueDeclare(SettlementRetryQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, SettlementRetryQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        err := c.Handle(ctx, d.Body)
        switch {
        case err == nil:
            _ = d.Ack(false)
        case errors.Is(err, ErrGiveUp):
            c.log.Error("settlement needs manual attention", sl.Err(err))
            _ = d.Nack(false, false)
        case ctx.Err() != nil:
            _ = d.Nack(false, true)
            return ctx.Err()
        default:
            // Store or lookup failures; try the same message again shortly.
            c.log.Error("settlement retry failed", sl.Err(err))
            _ = c.sleep(ctx, c.baseDelay)
            _ = d.Nack(false, true)
        }
    }
    return errors.New("deliveries channel closed")
}

// Handle processes one message body.  It returns nil when the message can
// be acked.
func (c *SettlementConsumer) Handle(ctx context.Context, body []byte) error {
    var ev Event
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("%w: unmarshal: %v", ErrGiveUp, err)
    }
    if ev.Type != EventSettlementFailed || ev.ReservationID == "" {
        c.log.Warn("unexpected message on settlement queue", slog.String("type", ev.Type))
        return nil
    }
    if ev.Attempt >= c.maxAttempts {
        return fmt.Errorf("%w: reservation %s after %d attempts (%s)", ErrGiveUp, ev.ReservationID, ev.Attempt, ev.Reason)
    }

    if wait := ev.OccurredAt.Add(c.backoff(ev.Attempt)).Sub(c.now()); wait > 0 {
        if err := c.sleep(ctx, wait); err != nil {
            return err
        }
    }

    c.log.Info("retrying settlement",
        slog.String("reservation_id", ev.ReservationID),
        slog.Int("attempt", ev.Attempt+1),
        slog.String("reason", ev.Reason),
    )
    return c.retrier.RetrySettlement(ctx, ev.ReservationID, ev.Attempt+1)
}

// backoff returns baseDelay·2^(attempt-1), capped at maxDelay.
func (c *SettlementConsumer) backoff(attempt int) time.Duration {
    d := c.baseDelay
    for i := 1; i < attempt && d < c.maxDelay; i++ {
        d *= 2
    }
    if d > c.maxDelay {
        d = c.maxDelay
    }
    return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/hotel-reservation/internal/event"
)

// Broker topology.  One durable topic exchange carries every domain event;
// each subscribed event type gets its own durable queue bound by the
// event.<Type> routing key.  Messages that exhaust their redeliveries are
// routed to the dead-letter exchange and parked in a per-type dead queue
// for inspection.
const (
	Exchange           = "domain-events"
	DeadLetterExchange = "domain-events.dlx"

	// retryHeader counts how many times this message has been redelivered
	// after a handler failure.  Kept in a message header so the bound
	// survives broker restarts and process crashes.
	retryHeader = "x-retry-count"
)

func routingKey(eventType string) string { return "event." + eventType }

func queueName(eventType string) string { return "events." + eventType }

func deadQueueName(eventType string) string { return "events." + eventType + ".dead" }

// RabbitBus is the durable EventBus implementation.  A single connection is
// shared by all publishers and consumers in the process; publishing is
// serialized on one channel, and every consumed event type gets its own
// channel so a stuck consumer cannot block the others.
var _ EventBus = (*RabbitBus)(nil)

type RabbitBus struct {
	url            string
	maxRetries     int
	prefetch       int
	handlerTimeout time.Duration

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel

	regMu    sync.Mutex
	handlers map[string][]Handler

	// republishFn schedules a redelivery.  Defaults to republish; tests
	// swap it to observe the retry decision without a broker.
	republishFn func(eventType string, body []byte, attempt int) error
}

// NewRabbitBus dials the broker and declares the exchanges.  maxRetries
// bounds redelivery per message (at least 1), prefetch caps unacked
// deliveries per consumer, handlerTimeout cancels a stuck handler so it
// cannot block redelivery forever.
func NewRabbitBus(url string, maxRetries, prefetch int, handlerTimeout time.Duration) (*RabbitBus, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if prefetch < 1 {
		prefetch = 10
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}
	b := &RabbitBus{
		url:            url,
		maxRetries:     maxRetries,
		prefetch:       prefetch,
		handlerTimeout: handlerTimeout,
		handlers:       make(map[string][]Handler),
	}
	b.republishFn = b.republish
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureChannel(); err != nil {
		return nil, err
	}
	return b, nil
}

// Close shuts down the broker connection.  Consumer goroutines exit when
// their delivery channels close.
func (b *RabbitBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn.Close()
	}
	return nil
}

// Publish implements EventBus.  Messages are marked persistent so they
// survive a broker restart together with the durable queues.
func (b *RabbitBus) Publish(ctx context.Context, ev event.DomainEvent) error {
	body, err := event.Marshal(ev)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureChannel(); err != nil {
		return err
	}
	return b.pubCh.PublishWithContext(ctx,
		Exchange,
		routingKey(ev.EventType()),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// PublishMany implements EventBus.  The batch goes out in input order; a
// failure stops the batch so the outbox relay can resume from the first
// unpublished event without reordering.
func (b *RabbitBus) PublishMany(ctx context.Context, events []event.DomainEvent) error {
	for _, ev := range events {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe implements EventBus.  The queue topology is declared
// synchronously so a broken broker surfaces at startup; the consumer loop
// then runs until the bus is closed, reconnecting with capped backoff.
// Additional handlers for an already-consumed type join the existing queue
// and each receives every delivery.
func (b *RabbitBus) Subscribe(eventType string, h Handler) error {
	b.regMu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	first := len(b.handlers[eventType]) == 1
	b.regMu.Unlock()
	if !first {
		return nil
	}

	ch, err := b.consumerChannel()
	if err != nil {
		return err
	}
	err = declareTopology(ch, eventType)
	_ = ch.Close()
	if err != nil {
		return err
	}

	go b.consume(eventType)
	return nil
}

// consume is the long-running per-type consumer loop, modeled as a
// reconnect loop: any channel or connection failure falls through to a
// backoff sleep and a fresh attempt.
func (b *RabbitBus) consume(eventType string) {
	backoff := time.Second
	for {
		ch, err := b.consumerChannel()
		if err != nil {
			log.Printf("eventbus: consumer %s: channel: %v; retrying in %s", eventType, err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := b.consumeLoop(ch, eventType); err != nil {
			if errors.Is(err, errBusClosed) {
				_ = ch.Close()
				return
			}
			log.Printf("eventbus: consumer %s: %v; reconnecting", eventType, err)
		}
		_ = ch.Close()
		time.Sleep(2 * time.Second)
	}
}

var errBusClosed = errors.New("bus closed")

func (b *RabbitBus) consumeLoop(ch *amqp.Channel, eventType string) error {
	if err := declareTopology(ch, eventType); err != nil {
		return err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(queueName(eventType), "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for d := range msgs {
		b.handleDelivery(eventType, d)
	}
	b.mu.Lock()
	closed := b.conn == nil || b.conn.IsClosed()
	b.mu.Unlock()
	if closed {
		return errBusClosed
	}
	return errors.New("deliveries channel closed")
}

// handleDelivery runs every registered handler for the type.  Success acks
// the message.  A failure schedules a redelivery by republishing the body
// with an incremented retry header and acking the original; once the bound
// is reached the message is rejected without requeue, which routes it to
// the dead-letter queue.
func (b *RabbitBus) handleDelivery(eventType string, d amqp.Delivery) {
	ev, err := event.Unmarshal(d.Body)
	if err != nil {
		// Undecodable payloads can never succeed; park them immediately.
		log.Printf("eventbus: consumer %s: poison message: %v", eventType, err)
		_ = d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
	err = b.dispatch(ctx, eventType, ev)
	cancel()
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers) + 1
	if attempt >= b.maxRetries {
		log.Printf("eventbus: consumer %s: giving up on %s v%d after %d attempts: %v",
			eventType, ev.AggregateID(), ev.EventVersion(), attempt, err)
		_ = d.Nack(false, false)
		return
	}
	log.Printf("eventbus: consumer %s: handler failed (attempt %d/%d): %v",
		eventType, attempt, b.maxRetries, err)
	if rerr := b.republishFn(eventType, d.Body, attempt); rerr != nil {
		// Could not schedule the bounded retry; fall back to a broker
		// requeue so the message is not lost.
		log.Printf("eventbus: consumer %s: republish failed: %v", eventType, rerr)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (b *RabbitBus) dispatch(ctx context.Context, eventType string, ev event.DomainEvent) error {
	b.regMu.Lock()
	hs := make([]Handler, len(b.handlers[eventType]))
	copy(hs, b.handlers[eventType])
	b.regMu.Unlock()
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// republish sends the message straight back to its own queue via the
// default exchange, carrying the incremented retry counter.
func (b *RabbitBus) republish(eventType string, body []byte, attempt int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureChannel(); err != nil {
		return err
	}
	return b.pubCh.PublishWithContext(context.Background(),
		"",
		queueName(eventType),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{retryHeader: int32(attempt)},
			Body:         body,
		},
	)
}

// consumerChannel opens a fresh channel, redialling the connection first if
// it has gone away.
func (b *RabbitBus) consumerChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConn(); err != nil {
		return nil, err
	}
	return b.conn.Channel()
}

// ensureChannel guarantees a live publishing channel.  Callers hold b.mu.
func (b *RabbitBus) ensureChannel() error {
	if err := b.ensureConn(); err != nil {
		return err
	}
	if b.pubCh == nil || b.pubCh.IsClosed() {
		ch, err := b.conn.Channel()
		if err != nil {
			return fmt.Errorf("eventbus: open channel: %w", err)
		}
		if err := declareExchanges(ch); err != nil {
			_ = ch.Close()
			return err
		}
		b.pubCh = ch
	}
	return nil
}

func (b *RabbitBus) ensureConn() error {
	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return fmt.Errorf("eventbus: dial broker: %w", err)
		}
		b.conn = conn
		b.pubCh = nil
	}
	return nil
}

func declareExchanges(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare dead-letter exchange: %w", err)
	}
	return nil
}

// declareTopology declares the per-type queue pair and bindings.  All
// declarations are idempotent so the consumer loop can repeat them after a
// reconnect.
func declareTopology(ch *amqp.Channel, eventType string) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	args := amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
	if _, err := ch.QueueDeclare(queueName(eventType), true, false, false, false, args); err != nil {
		return fmt.Errorf("eventbus: declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName(eventType), routingKey(eventType), Exchange, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind queue: %w", err)
	}
	if _, err := ch.QueueDeclare(deadQueueName(eventType), true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare dead queue: %w", err)
	}
	if err := ch.QueueBind(deadQueueName(eventType), routingKey(eventType), DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind dead queue: %w", err)
	}
	// Redelivered copies travel through the default exchange and keep the
	// queue name as their routing key, so bind that form as well.
	if err := ch.QueueBind(deadQueueName(eventType), queueName(eventType), DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind dead queue: %w", err)
	}
	return nil
}

// retryCount reads the redelivery counter from the message headers,
// tolerating the integer widths different clients write.
func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

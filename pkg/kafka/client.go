package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	readerMinBytes = 10e3
	readerMaxBytes = 10e6
	dialTimeout    = 5 * time.Second
	nackRetryDelay = 2 * time.Second
)

// Client holds the broker list shared by the publisher and the group readers.
type Client struct {
	cfg     config.KafkaConfig
	brokers []string
}

func NewClient(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	c := &Client{cfg: cfg, brokers: brokers}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", brokers), "kafka client initialized")
	}
	return c, nil
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: dialTimeout}
	var lastErr error
	for _, broker := range c.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("kafka brokers unreachable: %w", lastErr)
}

func (c *Client) Publisher() *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(c.brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: c.cfg.AllowTopicAutoCreate,
	}}
}

// Subscriber returns a consumer-group reader on the domain topic.
func (c *Client) Subscriber(groupID string) *Subscriber {
	return &Subscriber{retryDelay: nackRetryDelay, reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		Topic:    c.cfg.DomainTopic,
		GroupID:  groupID,
		MinBytes: readerMinBytes,
		MaxBytes: readerMaxBytes,
	})}
}

func (c *Client) NotificationSubscriber() *Subscriber {
	return c.Subscriber(c.cfg.NotificationGroupID)
}

func (c *Client) AnalyticsSubscriber() *Subscriber {
	return c.Subscriber(c.cfg.AnalyticsGroupID)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher adapts a kafka.Writer to outbox.Publisher.
type Publisher struct {
	writer messageWriter
}

func (p *Publisher) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	err := p.writer.WriteMessages(ctx, toKafkaMessage(topic, msg))
	if rejected(err) {
		return fmt.Errorf("%w: %v", outbox.ErrRejected, err)
	}
	return err
}

func rejected(err error) bool {
	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return true
	}
	var kerr kafka.Error
	return errors.As(err, &kerr) && (kerr == kafka.MessageSizeTooLarge || kerr == kafka.InvalidTopic)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toKafkaMessage(topic string, msg outbox.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: headers,
	}
}

func fromKafkaMessage(m kafka.Message) outbox.Message {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		attrs[h.Key] = string(h.Value)
	}
	return outbox.Message{
		ID:         m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10),
		Key:        string(m.Key),
		Data:       m.Value,
		Attributes: attrs,
	}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Subscriber commits an offset only after the handler acked it. Offsets are
// cumulative per partition, so a nacked message is handed back to the handler
// after retryDelay instead of being skipped.
type Subscriber struct {
	reader     messageReader
	retryDelay time.Duration
}

func (s *Subscriber) Receive(ctx context.Context, handle outbox.Handler) error {
	defer s.reader.Close()
	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}
		msg := fromKafkaMessage(m)
		for !handle(ctx, msg) {
			if err := sleep(ctx, s.retryDelay); err != nil {
				return err
			}
		}
		if err := s.reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit kafka offset: %w", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

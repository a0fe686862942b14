package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.written = append(f.written, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestPublisherMapsAttributesToHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}
	err := p.Publish(context.Background(), "domain", outbox.Message{
		Key:        "order-1",
		Data:       []byte(`{}`),
		Attributes: map[string]string{"event_type": "order.created"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("expected one message, got %d", len(w.written))
	}
	got := fromKafkaMessage(w.written[0])
	if got.EventType() != "order.created" || got.Key != "order-1" || w.written[0].Topic != "domain" {
		t.Fatalf("unexpected message %+v", w.written[0])
	}
}

func TestPublisherPropagatesWriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("leader not available")}}
	if err := p.Publish(context.Background(), "domain", outbox.Message{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubscriberRetriesNackedMessageBeforeCommit(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "domain", Offset: 1, Value: []byte("a")},
		{Topic: "domain", Offset: 2, Value: []byte("b")},
	}}
	s := &Subscriber{reader: r}

	attempts := map[string]int{}
	err := s.Receive(context.Background(), func(_ context.Context, msg outbox.Message) bool {
		attempts[string(msg.Data)]++
		return string(msg.Data) == "a" || attempts["b"] > 1
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected fetch error to surface, got %v", err)
	}
	if attempts["b"] != 2 {
		t.Fatalf("expected nacked message to be retried once, got %d", attempts["b"])
	}
	if len(r.committed) != 2 || r.committed[1].Offset != 2 {
		t.Fatalf("unexpected commits %+v", r.committed)
	}
	if !r.closed {
		t.Fatal("expected reader to be closed")
	}
}

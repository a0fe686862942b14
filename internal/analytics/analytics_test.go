package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type fakeInserter struct {
	errs  []error
	calls int
	rows  any
}

func (f *fakeInserter) InsertRows(_ context.Context, _ string, rows any) error {
	f.calls++
	f.rows = rows
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeManager struct {
	processed map[uuid.UUID]bool
	deleted   int
}

func (m *fakeManager) Once(ctx context.Context, _ string, id uuid.UUID, fn func(context.Context) error) (bool, error) {
	if m.processed == nil {
		m.processed = map[uuid.UUID]bool{}
	}
	if m.processed[id] {
		return true, nil
	}
	m.processed[id] = true
	if err := fn(ctx); err != nil {
		m.deleted++
		delete(m.processed, id)
		return false, err
	}
	return false, nil
}

type noopSubscriber struct{}

func (noopSubscriber) Receive(context.Context, outbox.Handler) error { return nil }

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaximumBackoff: time.Millisecond}
}

func paidEvent() payloads.OrderStatusChangedEvent {
	productID := uuid.New()
	return payloads.OrderStatusChangedEvent{
		OrderID:        uuid.New(),
		OrderNumber:    "ABCD1234",
		PreviousStatus: enums.OrderStatusPending,
		Status:         enums.OrderStatusProcessing,
		Paid:           true,
		ChangedAt:      time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		Items: []payloads.OrderLine{
			{ProductID: &productID, ProductName: "Lamp", UnitPrice: "20.00", Quantity: 2},
			{ProductName: "Gift card", UnitPrice: "10.00", Quantity: 1},
		},
	}
}

func statusMessage(t *testing.T, eventID uuid.UUID, evt payloads.OrderStatusChangedEvent) outbox.Message {
	t.Helper()
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return outbox.Message{ID: "1", Data: body, Attributes: map[string]string{"event_type": string(enums.EventOrderStatusChanged)}}
}

func TestSalesRowsOnePerLine(t *testing.T) {
	eventID := uuid.New()
	rows := SalesRows(eventID, paidEvent())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].ProductID.Valid || rows[1].ProductID.Valid {
		t.Fatalf("unexpected product ids: %+v", rows)
	}
	if rows[0].Quantity != 2 || rows[0].UnitPrice != "20.00" || rows[0].EventID != eventID.String() {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	inserter := &fakeInserter{errs: []error{&googleapi.Error{Code: http.StatusServiceUnavailable}, status.Error(codes.Unavailable, "later")}}
	w, err := NewSalesWriter(inserter, "sales", fastRetry())
	if err != nil {
		t.Fatalf("NewSalesWriter: %v", err)
	}
	if err := w.WriteSales(context.Background(), SalesRows(uuid.New(), paidEvent())); err != nil {
		t.Fatalf("WriteSales: %v", err)
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
}

func TestWriterStopsOnPermanentErrors(t *testing.T) {
	inserter := &fakeInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w, _ := NewSalesWriter(inserter, "sales", fastRetry())
	if err := w.WriteSales(context.Background(), SalesRows(uuid.New(), paidEvent())); err == nil {
		t.Fatal("expected error")
	}
	if inserter.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inserter.calls)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("boom"), false},
		{&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{status.Error(codes.InvalidArgument, "bad"), false},
		{status.Error(codes.Unavailable, "later"), true},
		{&cbigquery.Error{Reason: "backendError"}, true},
		{cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}, &cbigquery.Error{Reason: "invalid"}}, false},
	}
	for _, tc := range cases {
		if got := transient(tc.err); got != tc.want {
			t.Errorf("transient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWriterRetriesOnlyFailedRows(t *testing.T) {
	rowErr := cbigquery.PutMultiError{{
		RowIndex: 1,
		Errors:   cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}},
	}}
	inserter := &fakeInserter{errs: []error{rowErr}}
	w, err := NewSalesWriter(inserter, "sales", fastRetry())
	if err != nil {
		t.Fatalf("NewSalesWriter: %v", err)
	}
	if err := w.WriteSales(context.Background(), SalesRows(uuid.New(), paidEvent())); err != nil {
		t.Fatalf("WriteSales: %v", err)
	}
	last, ok := inserter.rows.([]*cbigquery.StructSaver)
	if !ok || len(last) != 1 {
		t.Fatalf("expected a single resent row, got %#v", inserter.rows)
	}
	if !strings.HasSuffix(last[0].InsertID, "/1") {
		t.Fatalf("expected second line to be resent, got insert id %q", last[0].InsertID)
	}
}

func newTestConsumer(t *testing.T, inserter *fakeInserter, manager *fakeManager) *Consumer {
	t.Helper()
	w, err := NewSalesWriter(inserter, "sales", fastRetry())
	if err != nil {
		t.Fatalf("NewSalesWriter: %v", err)
	}
	c, err := NewConsumer(noopSubscriber{}, w, manager, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return c
}

func TestConsumerWritesPaidOrdersOnce(t *testing.T) {
	inserter := &fakeInserter{}
	manager := &fakeManager{}
	c := newTestConsumer(t, inserter, manager)
	msg := statusMessage(t, uuid.New(), paidEvent())

	if !c.Handle(context.Background(), msg) || !c.Handle(context.Background(), msg) {
		t.Fatal("expected acks")
	}
	if inserter.calls != 1 {
		t.Fatalf("expected one insert, got %d", inserter.calls)
	}
}

func TestConsumerIgnoresNonSales(t *testing.T) {
	inserter := &fakeInserter{}
	c := newTestConsumer(t, inserter, &fakeManager{})
	shipped := paidEvent()
	shipped.PreviousStatus = enums.OrderStatusProcessing
	shipped.Status = enums.OrderStatusShipped

	if !c.Handle(context.Background(), statusMessage(t, uuid.New(), shipped)) {
		t.Fatal("expected ack")
	}
	if inserter.calls != 0 {
		t.Fatalf("expected no inserts, got %d", inserter.calls)
	}
}

func TestConsumerReleasesClaimOnFailure(t *testing.T) {
	inserter := &fakeInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	manager := &fakeManager{}
	c := newTestConsumer(t, inserter, manager)

	if c.Handle(context.Background(), statusMessage(t, uuid.New(), paidEvent())) {
		t.Fatal("expected nack")
	}
	if manager.deleted != 1 {
		t.Fatalf("expected claim release, got %d", manager.deleted)
	}
}

func TestSalesTableSpecPartitionsByPaidAt(t *testing.T) {
	spec, err := SalesTableSpec("order_item_sales")
	if err != nil {
		t.Fatalf("SalesTableSpec: %v", err)
	}
	if spec.PartitionField != "paid_at" {
		t.Fatalf("expected paid_at partitioning, got %q", spec.PartitionField)
	}
	required := map[string]bool{}
	for _, field := range spec.Schema {
		required[field.Name] = field.Required
	}
	if _, ok := required["paid_at"]; !ok {
		t.Fatal("schema missing paid_at")
	}
	if required["product_id"] {
		t.Fatal("product_id must be nullable for deleted products")
	}
	if !required["order_id"] {
		t.Fatal("order_id must be required")
	}
}

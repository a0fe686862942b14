package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy bounds how long a batch keeps being retried. Zero fields take
// the defaults 3 attempts, 250ms initial and 2s maximum backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows any) error
}

// SalesWriter streams sales rows into BigQuery. Each row carries an insert
// id derived from its event so redelivered events are deduplicated by the
// streaming API, and a partially failed batch retries only the failed rows.
type SalesWriter struct {
	client tableInserter
	table  string
	retry  RetryPolicy
}

func NewSalesWriter(client tableInserter, table string, retry RetryPolicy) (*SalesWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("sales table is required")
	}
	return &SalesWriter{client: client, table: table, retry: retry.normalized()}, nil
}

func (w *SalesWriter) WriteSales(ctx context.Context, rows []SalesRow) error {
	pending := make([]*cbigquery.StructSaver, len(rows))
	for i := range rows {
		pending[i] = &cbigquery.StructSaver{
			Struct:   &rows[i],
			InsertID: fmt.Sprintf("%s/%d", rows[i].EventID, i),
		}
	}

	backoff := w.retry.InitialBackoff
	for attempt := 1; len(pending) > 0; attempt++ {
		err := w.client.InsertRows(ctx, w.table, pending)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(pending), w.table, err)
		}
		pending = failedRows(pending, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
	return nil
}

// failedRows narrows the batch to the rows named in a PutMultiError; any
// other error means the whole batch is resent.
func failedRows(batch []*cbigquery.StructSaver, err error) []*cbigquery.StructSaver {
	var perRow cbigquery.PutMultiError
	if !errors.As(err, &perRow) {
		return batch
	}
	out := make([]*cbigquery.StructSaver, 0, len(perRow))
	for _, rowErr := range perRow {
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(batch) {
			out = append(out, batch[rowErr.RowIndex])
		}
	}
	if len(out) == 0 {
		return batch
	}
	return out
}

var (
	transientHTTP = map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	transientGRPC = map[codes.Code]bool{
		codes.Aborted:           true,
		codes.DeadlineExceeded:  true,
		codes.Internal:          true,
		codes.ResourceExhausted: true,
		codes.Unavailable:       true,
	}
	transientReasons = map[string]bool{
		"backendError":      true,
		"rateLimitExceeded": true,
		"timeout":           true,
	}
)

// transient reports whether a retry can succeed. Aggregate errors are
// transient only when every member is.
func transient(err error) bool {
	var perRow cbigquery.PutMultiError
	if errors.As(err, &perRow) {
		return len(perRow) > 0 && every(perRow, func(e cbigquery.RowInsertionError) bool { return transient(e.Errors) })
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && every(multi, transient)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		return transientReasons[bqErr.Reason]
	}
	if st, ok := status.FromError(err); ok {
		return transientGRPC[st.Code()]
	}
	return false
}

func every[T any](items []T, pred func(T) bool) bool {
	for _, item := range items {
		if !pred(item) {
			return false
		}
	}
	return true
}

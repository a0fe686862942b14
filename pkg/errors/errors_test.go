package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeNotFound:      http.StatusNotFound,
		CodeStateConflict: http.StatusUnprocessableEntity,
		CodeOutOfStock:    http.StatusConflict,
		CodePromoInvalid:  http.StatusUnprocessableEntity,
		CodePayment:       http.StatusBadGateway,
		CodeRateLimit:     http.StatusTooManyRequests,
		CodeDependency:    http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		assert.Equal(t, status, MetadataFor(code).HTTPStatus, string(code))
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestPublicMessageHidesInternals(t *testing.T) {
	internal := Wrap(CodeInternal, stdErrors.New("dial tcp 10.0.0.3:5432"), "load cart")
	assert.Equal(t, "internal server error", internal.PublicMessage())

	payment := New(CodePayment, "square 500: upstream timeout")
	assert.Equal(t, "payment could not be initiated, please retry", payment.PublicMessage())
	assert.True(t, MetadataFor(payment.Code()).Retryable)

	stock := Newf(CodeOutOfStock, "only %d left", 2)
	assert.Equal(t, "only 2 left", stock.PublicMessage())

	empty := New(CodeNotFound, "")
	assert.Equal(t, "resource not found", empty.PublicMessage())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve stock")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Contains(t, wrapped.Error(), "boom")

	plain := Wrap(CodeConflict, nil, "reserve stock")
	assert.Nil(t, plain.Unwrap())
	assert.Equal(t, "CONFLICT: reserve stock", plain.Error())
}

func TestWithDetailsChains(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"quantity": "must be at least 1"})
	assert.Equal(t, map[string]string{"quantity": "must be at least 1"}, err.Details())

	var nilErr *Error
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	outer := fmt.Errorf("checkout: %w", New(CodeOutOfStock, "only 2 left"))
	assert.True(t, IsCode(outer, CodeOutOfStock))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(nil, CodeInternal))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestDiagnoseExtractsPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_reference_key", TableName: "orders"}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "place order")

	d := Diagnose(err)
	assert.Equal(t, CodeConflict, d.Code)
	require.NotNil(t, d.Postgres)
	assert.Equal(t, "23505", d.Postgres.Code)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "orders_reference_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_column")
}

func TestDiagnosePlainError(t *testing.T) {
	fields := Diagnose(stdErrors.New("socket closed")).Fields()
	assert.Equal(t, map[string]any{"error": "socket closed"}, fields)
	assert.Empty(t, Diagnose(nil).Message)
}

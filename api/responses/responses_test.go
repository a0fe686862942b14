package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]string{"order_number": "SF-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"order_number":"SF-1"}}`, rec.Body.String())
}

func TestWriteErrorRendering(t *testing.T) {
	cases := map[string]struct {
		err       error
		status    int
		message   string
		details   bool
		retryable bool
	}{
		"validation with details": {
			err:     pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "email"}),
			status:  http.StatusBadRequest,
			message: "bad input",
			details: true,
		},
		"out of stock names the product": {
			err:     pkgerrors.New(pkgerrors.CodeOutOfStock, "Desk Lamp is out of stock"),
			status:  http.StatusConflict,
			message: "Desk Lamp is out of stock",
		},
		"payment hides gateway text": {
			err:       pkgerrors.Wrap(pkgerrors.CodePayment, errors.New("square 500"), "init failed"),
			status:    http.StatusBadGateway,
			message:   "payment could not be initiated, please retry",
			retryable: true,
		},
		"uncoded error is internal": {
			err:       errors.New("pq: connection refused"),
			status:    http.StatusInternalServerError,
			message:   "internal server error",
			retryable: true,
		},
		"forbidden details stay private": {
			err:     pkgerrors.New(pkgerrors.CodeForbidden, "nope").WithDetails(map[string]any{"step": "x"}),
			status:  http.StatusForbidden,
			message: "nope",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, tc.retryable, body.Retryable)
			assert.Equal(t, tc.details, body.Details != nil)
		})
	}
}

func TestWriteErrorRateLimitCarriesRequestIDAndRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-checkout-1")
	WriteError(ctx, nil, rec, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "req-checkout-1", decodeError(t, rec).RequestID)
}

func TestWriteErrorKeepsExistingRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "7")
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"))
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
}

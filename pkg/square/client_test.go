package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubPayments struct {
	created *sq.CreatePaymentRequest
	payment *sq.Payment
	err     error
}

func (s *stubPayments) Create(_ context.Context, req *sq.CreatePaymentRequest, _ ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &sq.CreatePaymentResponse{Payment: s.payment}, nil
}

func (s *stubPayments) Get(context.Context, *sq.GetPaymentsRequest, ...sqoption.RequestOption) (*sq.GetPaymentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sq.GetPaymentResponse{Payment: s.payment}, nil
}

func quiet() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard})
}

func TestNewClientReportsEveryMissingCredential(t *testing.T) {
	_, err := NewClient(context.Background(), config.SquareConfig{Env: "sandbox"}, quiet())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	for _, field := range []string{"access token", "location id", "webhook signature key"} {
		assert.ErrorContains(t, err, field)
	}
}

func TestNewClientRejectsUnknownEnvironment(t *testing.T) {
	_, err := NewClient(context.Background(), config.SquareConfig{Env: "staging"}, quiet())
	assert.ErrorContains(t, err, "staging")
}

func TestCreatePaymentBuildsRequest(t *testing.T) {
	id, status := "pay_1", PaymentStatusCompleted
	stub := &stubPayments{payment: &sq.Payment{ID: &id, Status: &status}}
	c := &Client{payments: stub, locationID: "LOC", logg: quiet()}

	payment, err := c.CreatePayment(context.Background(), PaymentCreateParams{
		AmountCents:    1999,
		Currency:       "usd",
		SourceID:       "cnon:card-nonce-ok",
		IdempotencyKey: "sf-ORDER-1",
		ReferenceID:    "ORDER-1",
		GivenName:      "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", deref(payment.GetID()))

	req := stub.created
	assert.Equal(t, "sf-ORDER-1", req.IdempotencyKey)
	assert.Equal(t, "LOC", deref(req.LocationID))
	assert.Equal(t, "ORDER-1", deref(req.ReferenceID))
	require.NotNil(t, req.AmountMoney)
	assert.EqualValues(t, 1999, *req.AmountMoney.Amount)
	assert.EqualValues(t, "USD", *req.AmountMoney.Currency)
	require.NotNil(t, req.BillingAddress)
	assert.Equal(t, "Ada", deref(req.BillingAddress.FirstName))
}

func TestCreatePaymentRequiresIdempotencyKey(t *testing.T) {
	c := &Client{payments: &stubPayments{}}
	_, err := c.CreatePayment(context.Background(), PaymentCreateParams{AmountCents: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetPaymentTranslatesAPIError(t *testing.T) {
	c := &Client{payments: &stubPayments{err: sqcore.NewAPIError(http.StatusNotFound, errors.New(`{"errors":[]}`))}}
	_, err := c.GetPayment(context.Background(), "pay_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetPaymentTransportFailureIsDependency(t *testing.T) {
	c := &Client{payments: &stubPayments{err: errors.New("dial tcp: timeout")}, logg: quiet()}
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestSignatureMatches(t *testing.T) {
	body := []byte(`{"type":"payment.updated"}`)
	url := "https://shop.example/api/v1/webhooks/payments"
	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte(url))
	mac.Write(body)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, signatureMatches("key", url, body, sig))
	assert.False(t, signatureMatches("key", "https://other.example", body, sig), "url is part of the signed content")
	assert.False(t, signatureMatches("", url, body, sig))
	assert.False(t, signatureMatches("key", url, body, "not-base64!"))
}

func TestMaskedHidesBuyerData(t *testing.T) {
	out := masked("create_payment", map[string]any{"buyer_email": "a@b.c", "amount": int64(5)})
	assert.Equal(t, "[REDACTED]", out["buyer_email"])
	assert.Equal(t, int64(5), out["amount"])
	assert.Equal(t, "create_payment", out["square_op"])
}

func TestCodeForStatus(t *testing.T) {
	for status, want := range map[int]pkgerrors.Code{
		http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
		http.StatusPaymentRequired:     pkgerrors.CodePayment,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
		http.StatusUnprocessableEntity: pkgerrors.CodeValidation,
		http.StatusTeapot:              pkgerrors.CodeValidation,
		http.StatusBadGateway:          pkgerrors.CodeDependency,
	} {
		assert.Equal(t, want, codeForStatus(status), "status %d", status)
	}
}

func TestTranslatePrefersErrorDetails(t *testing.T) {
	for payload, want := range map[string]pkgerrors.Code{
		`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`:   pkgerrors.CodeUnauthorized,
		`{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`:    pkgerrors.CodeIdempotency,
		`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED"}]}`: pkgerrors.CodePayment,
	} {
		err := translate(sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload)), "op")
		assert.True(t, pkgerrors.IsCode(err, want), payload)
	}
}

func TestToMinorUnits(t *testing.T) {
	assert.EqualValues(t, 2000, ToMinorUnits(decimal.RequireFromString("19.995")))
	assert.EqualValues(t, 10, ToMinorUnits(decimal.RequireFromString("0.10")))
}

func TestIdempotencyKeyForTruncates(t *testing.T) {
	assert.Len(t, IdempotencyKeyFor("ORDER-ABCDEFGH-1700000000-with-a-much-longer-suffix"), 45)
}

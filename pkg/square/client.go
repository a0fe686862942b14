package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SignatureHeader carries base64(HMAC-SHA256(key, notification_url + body)).
const SignatureHeader = "X-Square-Hmacsha256-Signature"

var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

type paymentsAPI interface {
	Create(ctx context.Context, request *sq.CreatePaymentRequest, opts ...sqoption.RequestOption) (*sq.CreatePaymentResponse, error)
	Get(ctx context.Context, request *sq.GetPaymentsRequest, opts ...sqoption.RequestOption) (*sq.GetPaymentResponse, error)
}

// Client is the storefront's view of the Square Payments API. Every call is
// logged with sensitive fields masked and SDK errors become coded errors.
type Client struct {
	payments    paymentsAPI
	environment string
	locationID  string
	signingKey  string
	notifyURL   string
	logg        *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square: logger is required")
	}
	env := cfg.Environment()
	host, ok := hosts[env]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "square: unknown environment %q", env)
	}

	token := strings.TrimSpace(cfg.AccessToken)
	location := strings.TrimSpace(cfg.LocationID)
	signingKey := strings.TrimSpace(cfg.WebhookSecret)
	var err error
	for name, value := range map[string]string{
		"access token":          token,
		"location id":           location,
		"webhook signature key": signingKey,
	} {
		if value == "" {
			err = multierr.Append(err, errors.New(name+" is required"))
		}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "square: incomplete credentials")
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token))
	logg.Info(logg.WithField(ctx, "square_env", env), "square.ready")
	return &Client{
		payments:    sdk.Payments,
		environment: env,
		locationID:  location,
		signingKey:  signingKey,
		notifyURL:   strings.TrimSpace(cfg.WebhookURL),
		logg:        logg,
	}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SetNotificationURL fills in the signed URL when none was configured. It
// must equal the subscription URL registered with Square.
func (c *Client) SetNotificationURL(url string) {
	if c != nil && c.notifyURL == "" {
		c.notifyURL = strings.TrimSpace(url)
	}
}

func (c *Client) VerifyWebhookSignature(body []byte, header string) bool {
	return c != nil && signatureMatches(c.signingKey, c.notifyURL, body, header)
}

func signatureMatches(key, url string, body []byte, header string) bool {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil || len(got) == 0 || key == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(append([]byte(url), body...))
	return hmac.Equal(mac.Sum(nil), got)
}

// CreatePayment charges the source once per idempotency key.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	return c.invoke(ctx, "create_payment", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"currency":     params.Currency,
		"buyer_email":  params.BuyerEmail,
	}, func() (*sq.Payment, error) {
		resp, err := c.payments.Create(ctx, params.toSquareRequest())
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	return c.invoke(ctx, "get_payment", map[string]any{"payment_id": paymentID}, func() (*sq.Payment, error) {
		resp, err := c.payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
		if err != nil {
			return nil, err
		}
		return resp.GetPayment(), nil
	})
}

func (c *Client) invoke(ctx context.Context, op string, fields map[string]any, call func() (*sq.Payment, error)) (*sq.Payment, error) {
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, masked(op, fields))
	}
	payment, err := call()
	if err != nil {
		err = translate(err, op)
		if c.logg != nil {
			c.logg.Error(ctx, "square.call_failed", err)
		}
		return nil, err
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"payment_id": deref(payment.GetID()),
			"status":     deref(payment.GetStatus()),
		}), "square.call")
	}
	return payment, nil
}

var sensitive = []string{"card", "nonce", "token", "source", "secret", "email", "phone"}

func masked(op string, fields map[string]any) map[string]any {
	out := map[string]any{"square_op": op}
	for key, value := range fields {
		out[key] = value
		for _, marker := range sensitive {
			if strings.Contains(strings.ToLower(key), marker) {
				out[key] = "[REDACTED]"
				break
			}
		}
	}
	return out
}

var categoryCodes = map[sq.ErrorCategory]pkgerrors.Code{
	sq.ErrorCategoryAuthenticationError:  pkgerrors.CodeUnauthorized,
	sq.ErrorCategoryPaymentMethodError:   pkgerrors.CodePayment,
	sq.ErrorCategory("RATE_LIMIT_ERROR"): pkgerrors.CodeRateLimit,
}

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusPaymentRequired:     pkgerrors.CodePayment,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeValidation,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

// translate turns an SDK failure into a coded error. A reused idempotency key
// outranks the error category, which outranks the HTTP status.
func translate(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square "+op+" failed")
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, detail := range details(apiErr) {
		if detail.Code == sq.ErrorCodeIdempotencyKeyReused {
			code = pkgerrors.CodeIdempotency
			break
		}
		if mapped, ok := categoryCodes[detail.Category]; ok {
			code = mapped
			break
		}
	}
	return pkgerrors.Wrap(code, err, "square "+op+" failed")
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func details(apiErr *sqcore.APIError) []sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

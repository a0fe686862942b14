package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	squarewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	squareSignatureHeader = "X-Square-Hmacsha256-Signature"
	maxWebhookBodyBytes   = 1 << 20
)

type PaymentEventHandler interface {
	HandleEvent(ctx context.Context, event *squarewebhook.Event) (*payments.Confirmation, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, header string) bool
}

// PaymentWebhook receives gateway payment notifications. A delivery is only
// remembered once it was processed; failures release the event id so the
// gateway's retry is handled.
func PaymentWebhook(svc PaymentEventHandler, verifier signatureVerifier, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(squareSignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "square signature missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(payload, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
			return
		}

		var event squarewebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := event.ID()
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": eventID, "event_type": event.Type})
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		confirmation, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if delErr := guard.Delete(ctx, eventID); delErr != nil && logg != nil {
				logg.Error(ctx, "webhook.release_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if confirmation == nil {
			if logg != nil {
				logg.Debug(ctx, "webhook.ignored")
			}
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		if logg != nil {
			ctx = logg.WithOrderID(ctx, confirmation.OrderID.String())
			logg.Info(logg.WithField(ctx, "outcome", string(confirmation.Outcome)), "webhook.processed")
		}
		responses.WriteSuccess(w, confirmation)
	}
}

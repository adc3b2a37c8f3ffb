package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/ordercore-backend/api/responses"
	"github.com/angelmondragon/ordercore-backend/internal/webhooks/payments"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type PaymentWebhookService interface {
	HandleEvent(ctx context.Context, event *payments.Event) (string, error)
}

type webhookResponse struct {
	EventID string `json:"event_id"`
	Outcome string `json:"outcome"`
}

// PaymentWebhook verifies the provider signature and hands the event to the
// payment webhook service. Duplicates and already-applied events answer 200 so
// the provider stops retrying.
func PaymentWebhook(svc PaymentWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	return paymentWebhook(svc, secret, time.Now, logg)
}

func paymentWebhook(svc PaymentWebhookService, secret string, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(payments.SignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing"))
			return
		}
		if err := payments.VerifySignature(secret, sigHeader, payload, now(), payments.DefaultTolerance); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := payments.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, webhookResponse{EventID: event.ID, Outcome: outcome})
	}
}

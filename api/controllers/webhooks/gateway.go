package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/hungerdash/hungerdash-backend/api/responses"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
)

// signatureHeader is the HMAC header the gateway signs each delivery with.
const signatureHeader = "X-Gateway-Signature"

type WebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signatureHeader string) bool
}

// GatewayWebhook receives payment events pushed by the card gateway.
// The signature is checked before anything else; an unverifiable
// delivery is rejected without touching storage. Processing errors are
// surfaced as non-2xx so the gateway retries the delivery.
func GatewayWebhook(svc WebhookService, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if !verifier.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		if err := svc.HandleWebhook(ctx, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

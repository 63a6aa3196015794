package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired   = errors.New("gateway access token is required")
	errLocationRequired      = errors.New("gateway location id is required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
	errInvalidGatewayEnv     = fmt.Errorf("gateway environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("gateway logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client wraps the card gateway with centralized auth, bounded timeouts,
// logging, idempotency, and status normalization. Every call site receives
// statuses in this system's vocabulary, never the provider's.
type Client struct {
	sdk           *sqclient.Client
	environment   string
	locationID    string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the gateway wrapper and validates credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
		sqoption.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	c := &Client{
		sdk:           sdk,
		environment:   env,
		locationID:    locationID,
		webhookSecret: webhookSecret,
		logger:        logg,
	}
	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "hd"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateCheckout opens a hosted payment session for an already-priced order.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutCreateParams) (*CheckoutSession, error) {
	req := params.toRequest(c.ensureIdempotencyKey("checkout.create", params.IdempotencyKey), c.locationID)
	c.log(ctx, "request", "create_checkout", map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountMinorUnits,
		"currency":     params.Currency,
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create checkout")
	}

	link := resp.GetPaymentLink()
	session := &CheckoutSession{
		CheckoutID:     stringValue(link.GetID()),
		GatewayOrderID: stringValue(link.GetOrderID()),
		RedirectURL:    stringValue(link.GetURL()),
		Status:         enums.PaymentStatusPending,
	}
	c.log(ctx, "response", "create_checkout", map[string]any{"checkout_id": session.CheckoutID})
	return session, nil
}

// GetCheckout reads the current state of a checkout's underlying gateway
// order. Used by the client-poll reconciliation channel.
func (c *Client) GetCheckout(ctx context.Context, gatewayOrderID string) (*CheckoutState, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	c.log(ctx, "request", "get_checkout", map[string]any{"gateway_order_id": gatewayOrderID})

	resp, err := c.sdk.Orders.Get(ctx, &sq.GetOrdersRequest{OrderID: gatewayOrderID})
	if err != nil {
		c.log(ctx, "error", "get_checkout", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "get checkout")
	}

	order := resp.GetOrder()
	state := &CheckoutState{
		GatewayOrderID: stringValue(order.GetID()),
		Status:         NormalizeOrderState(orderStateString(order.GetState())),
	}
	c.log(ctx, "response", "get_checkout", map[string]any{
		"gateway_order_id": state.GatewayOrderID,
		"status":           state.Status,
	})
	return state, nil
}

// ChargeCard runs the synchronous direct-charge path against a card token.
func (c *Client) ChargeCard(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	req := params.toRequest(c.ensureIdempotencyKey("payment.create", params.IdempotencyKey), c.locationID)
	c.log(ctx, "request", "charge_card", map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountMinorUnits,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "charge_card", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "charge card")
	}

	result := chargeResultFromPayment(resp.GetPayment())
	c.log(ctx, "response", "charge_card", map[string]any{
		"gateway_payment_id": result.GatewayPaymentID,
		"status":             result.Status,
	})
	return result, nil
}

// GetPayment looks up one gateway payment by its provider id.
func (c *Client) GetPayment(ctx context.Context, gatewayPaymentID string) (*ChargeResult, error) {
	if strings.TrimSpace(gatewayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id required")
	}
	c.log(ctx, "request", "get_payment", map[string]any{"gateway_payment_id": gatewayPaymentID})

	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: gatewayPaymentID})
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "get payment")
	}

	result := chargeResultFromPayment(resp.GetPayment())
	c.log(ctx, "response", "get_payment", map[string]any{
		"gateway_payment_id": result.GatewayPaymentID,
		"status":             result.Status,
	})
	return result, nil
}

// VerifyWebhookSignature checks the HMAC the gateway puts on every webhook
// delivery. Constant-time compare; an empty header or secret never matches.
func (c *Client) VerifyWebhookSignature(payload []byte, signatureHeader string) bool {
	return verifySignature(payload, c.webhookSecret, signatureHeader)
}

// SignPayload computes the signature for a payload; used by tests and by
// outbound delivery simulation in sandbox tooling.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(header))
}

func chargeResultFromPayment(payment *sq.Payment) *ChargeResult {
	if payment == nil {
		return &ChargeResult{Status: enums.PaymentStatusPending}
	}
	result := &ChargeResult{
		GatewayPaymentID: stringValue(payment.GetID()),
		GatewayOrderID:   stringValue(payment.GetOrderID()),
		Status:           NormalizePaymentStatus(stringValue(payment.GetStatus())),
		Card:             cardSummaryFromPayment(payment),
	}
	return result
}

func cardSummaryFromPayment(payment *sq.Payment) *types.CardSummary {
	details := payment.GetCardDetails()
	if details == nil {
		return nil
	}
	card := details.GetCard()
	if card == nil {
		return nil
	}
	summary := &types.CardSummary{
		Last4: stringValue(card.GetLast4()),
	}
	if brand := card.GetCardBrand(); brand != nil {
		summary.Brand = string(*brand)
	}
	return summary
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// mapGatewayError converts provider failures into the domain taxonomy. A
// transport failure or timeout maps to a retryable dependency error, never
// to a payment failure.
func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, gErr := range c.extractProviderErrors(apiErr) {
			if gErr == nil {
				continue
			}
			if gErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if gErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("gateway %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", op))
}

func (c *Client) extractProviderErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func orderStateString(state *sq.OrderState) string {
	if state == nil {
		return ""
	}
	return string(*state)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidGatewayEnv
	}
}

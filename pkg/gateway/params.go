package gateway

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

// CheckoutCreateParams describes one hosted checkout session. The amount is
// the already-priced order total in minor units; the gateway never computes
// prices.
type CheckoutCreateParams struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	RedirectURL      string
	ReferenceID      string
	IdempotencyKey   string
}

func (p CheckoutCreateParams) toRequest(idempotencyKey, locationID string) *sqcheckout.CreatePaymentLinkRequest {
	name := strings.TrimSpace(p.Description)
	if name == "" {
		name = "Order payment"
	}
	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		QuickPay: &sq.QuickPay{
			Name:       name,
			PriceMoney: moneyPtr(p.AmountMinorUnits, p.Currency),
			LocationID: locationID,
		},
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	return req
}

// ChargeParams encapsulates a direct card-token charge.
type ChargeParams struct {
	AmountMinorUnits int64
	Currency         string
	SourceID         string
	CustomerID       string
	ReferenceID      string
	Note             string
	IdempotencyKey   string
}

func (p ChargeParams) toRequest(idempotencyKey, locationID string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(locationID),
		SourceID:       p.SourceID,
	}
	if p.AmountMinorUnits > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinorUnits, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.CustomerID); trimmed != "" {
		req.CustomerID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "ZAR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}

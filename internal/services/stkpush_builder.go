package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/gateway"
	"mpesa-service/pkg/common"

	"github.com/shopspring/decimal"
)

// PaymentRequestBuilder signs and fills STK push and query payloads for one
// paybill shortcode.
type PaymentRequestBuilder struct {
	ShortCode        string
	PassKey          string
	CallbackURL      string
	AccountReference string
	now              func() time.Time
}

func NewPaymentRequestBuilder(shortCode, passKey, callbackURL, accountReference string) *PaymentRequestBuilder {
	if accountReference == "" {
		accountReference = "Payment"
	}
	return &PaymentRequestBuilder{
		ShortCode:        shortCode,
		PassKey:          passKey,
		CallbackURL:      callbackURL,
		AccountReference: accountReference,
		now:              time.Now,
	}
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// ValidateAmount rejects a missing or non-positive amount.
func ValidateAmount(amount *decimal.Decimal) error {
	if amount == nil {
		return apperrors.Validation("amount", "amount is required")
	}
	if !amount.IsPositive() {
		return apperrors.Validation("amount", "amount must be greater than zero")
	}
	return nil
}

// Build assembles the push request. payer must already be normalized; an
// empty recipient means the payer is paying for themselves.
func (b *PaymentRequestBuilder) Build(payer, recipient string, amount *decimal.Decimal) (gateway.STKPushRequest, error) {
	if err := ValidateAmount(amount); err != nil {
		return gateway.STKPushRequest{}, err
	}

	timestamp := b.now().Format(gateway.TimestampLayout)

	reference := b.AccountReference
	desc := "Payment from " + payer
	if recipient != "" {
		reference = recipient
		if recipient != payer {
			desc = fmt.Sprintf("Payment from %s for %s", payer, recipient)
		}
	}

	return gateway.STKPushRequest{
		BusinessShortCode: b.ShortCode,
		Password:          Password(b.ShortCode, b.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   gateway.TransactionTypePayBill,
		Amount:            json.Number(amount.String()),
		PartyA:            payer,
		PartyB:            b.ShortCode,
		PhoneNumber:       payer,
		CallBackURL:       b.CallbackURL,
		AccountReference:  common.EscapeXML(reference),
		TransactionDesc:   common.EscapeXML(desc),
	}, nil
}

// Query assembles a status query for an earlier push.
func (b *PaymentRequestBuilder) Query(checkoutRequestID string) gateway.STKQueryRequest {
	timestamp := b.now().Format(gateway.TimestampLayout)
	return gateway.STKQueryRequest{
		BusinessShortCode: b.ShortCode,
		Password:          Password(b.ShortCode, b.PassKey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
}

package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder() *PaymentRequestBuilder {
	b := NewPaymentRequestBuilder("174379", "passkey", "https://example.com/payments/callback", "")
	b.now = fixedClock(time.Date(2024, 3, 5, 9, 7, 1, 0, time.Local))
	return b
}

func TestBuildForPayer(t *testing.T) {
	amount := decimal.NewFromInt(50)
	req, err := newTestBuilder().Build("254712345678", "", &amount)
	require.NoError(t, err)

	assert.Equal(t, "20240305090701", req.Timestamp)
	assert.Equal(t, "254712345678", req.PartyA)
	assert.Equal(t, "254712345678", req.PhoneNumber)
	assert.Equal(t, "174379", req.PartyB)
	assert.Equal(t, "174379", req.BusinessShortCode)
	assert.Equal(t, gateway.TransactionTypePayBill, req.TransactionType)
	assert.Equal(t, json.Number("50"), req.Amount)
	assert.Equal(t, "https://example.com/payments/callback", req.CallBackURL)
	assert.Equal(t, "Payment", req.AccountReference)
	assert.NotContains(t, req.TransactionDesc, " for ")

	decoded, err := base64.StdEncoding.DecodeString(req.Password)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20240305090701", string(decoded))
}

func TestBuildForRecipient(t *testing.T) {
	amount := decimal.RequireFromString("12.50")
	req, err := newTestBuilder().Build("254712345678", "254700000001", &amount)
	require.NoError(t, err)

	assert.Equal(t, "254712345678", req.PartyA)
	assert.Equal(t, "254700000001", req.AccountReference)
	assert.Contains(t, req.TransactionDesc, "254700000001")
	assert.Equal(t, json.Number("12.5"), req.Amount)
}

func TestBuildEscapesNarrative(t *testing.T) {
	b := newTestBuilder()
	b.AccountReference = `Tom & Jerry's <"shop">`
	amount := decimal.NewFromInt(1)

	req, err := b.Build("254712345678", "", &amount)
	require.NoError(t, err)
	assert.Equal(t, "Tom &amp; Jerry&apos;s &lt;&quot;shop&quot;&gt;", req.AccountReference)
}

func TestBuildRejectsBadAmount(t *testing.T) {
	zero := decimal.Zero
	negative := decimal.NewFromInt(-5)

	for name, amount := range map[string]*decimal.Decimal{
		"missing":  nil,
		"zero":     &zero,
		"negative": &negative,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newTestBuilder().Build("254712345678", "", amount)
			var ve *apperrors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "amount", ve.Field)
		})
	}
}

func TestQueryIsSigned(t *testing.T) {
	q := newTestBuilder().Query("ws_1")
	assert.Equal(t, "ws_1", q.CheckoutRequestID)
	assert.Equal(t, Password("174379", "passkey", "20240305090701"), q.Password)
}

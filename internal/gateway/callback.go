package gateway

import (
	"encoding/json"
	"strconv"
	"strings"

	"mpesa-service/internal/apperrors"

	"github.com/shopspring/decimal"
)

// Metadata item names reported on a successful push.
const (
	ItemAmount          = "Amount"
	ItemReceiptNumber   = "MpesaReceiptNumber"
	ItemTransactionDate = "TransactionDate"
	ItemPhoneNumber     = "PhoneNumber"
)

type callbackEnvelope struct {
	Body *struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the confirmation object the gateway posts to CallBackURL.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *int              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as numbers or strings depending on the field.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback decodes a callback body. A body without Body.stkCallback, a
// CheckoutRequestID or a ResultCode is rejected.
func ParseCallback(raw []byte) (*STKCallback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apperrors.MalformedCallbackError{Reason: "invalid json", Err: err}
	}
	if env.Body == nil || env.Body.STKCallback == nil {
		return nil, &apperrors.MalformedCallbackError{Reason: "missing Body.stkCallback"}
	}
	cb := env.Body.STKCallback
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, &apperrors.MalformedCallbackError{Reason: "missing CheckoutRequestID"}
	}
	if cb.ResultCode == nil {
		return nil, &apperrors.MalformedCallbackError{Reason: "missing ResultCode"}
	}
	return cb, nil
}

// HasMetadata reports whether the gateway attached the success metadata list.
func (cb *STKCallback) HasMetadata() bool {
	return cb.CallbackMetadata != nil
}

// Text returns the named item as text, or "" when absent.
func (cb *STKCallback) Text(name string) (string, bool) {
	if cb.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != name {
			continue
		}
		v := strings.TrimSpace(string(item.Value))
		if v == "" || v == "null" {
			return "", false
		}
		if strings.HasPrefix(v, `"`) {
			var s string
			if err := json.Unmarshal(item.Value, &s); err != nil {
				return "", false
			}
			return s, true
		}
		return v, true
	}
	return "", false
}

// Amount returns the named item as a decimal, or false when absent or not numeric.
func (cb *STKCallback) Amount() (decimal.Decimal, bool) {
	s, ok := cb.Text(ItemAmount)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseResultCode reads the string result code a status query reports.
func ParseResultCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

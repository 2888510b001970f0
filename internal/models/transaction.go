package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Transaction is one push payment. CheckoutRequestID is issued by the gateway
// and joins the initiation request to its asynchronous callback.
type Transaction struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantRequestID    string          `gorm:"column:merchant_request_id;size:100" json:"merchantRequestId"`
	CheckoutRequestID    string          `gorm:"column:checkout_request_id;size:100;not null;uniqueIndex" json:"checkoutRequestId"`
	Status               string          `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	ResultCode           *int            `gorm:"column:result_code" json:"resultCode"`
	ResultDescription    string          `gorm:"column:result_description;type:text" json:"resultDescription"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	ReceiptNumber        *string         `gorm:"column:receipt_number;size:50" json:"receiptNumber"`
	TransactionTimestamp *string         `gorm:"column:transaction_timestamp;size:20" json:"transactionTimestamp"`
	PayerPhone           string          `gorm:"column:payer_phone;size:20;not null" json:"payerPhone"`
	RecipientPhone       string          `gorm:"column:recipient_phone;size:20" json:"recipientPhone"`
	RawCallbackPayload   datatypes.JSON  `gorm:"column:raw_callback_payload" json:"rawCallbackPayload"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) Pending() bool {
	return t.ResultCode == nil
}

func (t *Transaction) Succeeded() bool {
	return t.ResultCode != nil && *t.ResultCode == 0
}

// StatusFor maps a gateway result code onto a terminal status.
func StatusFor(resultCode int) string {
	if resultCode == 0 {
		return StatusSucceeded
	}
	return StatusFailed
}

// TransactionPatch carries the fields a reconciliation writes. Nil fields are
// left untouched on an existing record and defaulted on a new one.
type TransactionPatch struct {
	MerchantRequestID    *string
	ResultCode           *int
	ResultDescription    *string
	Amount               *decimal.Decimal
	ReceiptNumber        *string
	TransactionTimestamp *string
	PayerPhone           *string
	RawCallbackPayload   datatypes.JSON
}

// NewRecord builds the record an upsert inserts when nothing exists yet under
// checkoutRequestID.
func (p TransactionPatch) NewRecord(checkoutRequestID string) Transaction {
	t := Transaction{
		CheckoutRequestID:  checkoutRequestID,
		Status:             StatusPending,
		Amount:             decimal.Zero,
		RawCallbackPayload: p.RawCallbackPayload,
	}
	if p.MerchantRequestID != nil {
		t.MerchantRequestID = *p.MerchantRequestID
	}
	if p.ResultCode != nil {
		code := *p.ResultCode
		t.ResultCode = &code
		t.Status = StatusFor(code)
	}
	if p.ResultDescription != nil {
		t.ResultDescription = *p.ResultDescription
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	t.ReceiptNumber = p.ReceiptNumber
	t.TransactionTimestamp = p.TransactionTimestamp
	if p.PayerPhone != nil {
		t.PayerPhone = *p.PayerPhone
		t.RecipientPhone = *p.PayerPhone
	}
	return t
}

// UpdateColumns lists the columns an upsert overwrites on an existing record.
// Payer and recipient phone are authoritative from creation and never appear.
func (p TransactionPatch) UpdateColumns() []string {
	var cols []string
	if p.MerchantRequestID != nil {
		cols = append(cols, "merchant_request_id")
	}
	if p.ResultCode != nil {
		cols = append(cols, "result_code", "status")
	}
	if p.ResultDescription != nil {
		cols = append(cols, "result_description")
	}
	if p.Amount != nil {
		cols = append(cols, "amount")
	}
	if p.ReceiptNumber != nil {
		cols = append(cols, "receipt_number")
	}
	if p.TransactionTimestamp != nil {
		cols = append(cols, "transaction_timestamp")
	}
	if p.RawCallbackPayload != nil {
		cols = append(cols, "raw_callback_payload")
	}
	return cols
}

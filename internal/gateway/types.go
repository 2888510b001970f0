package gateway

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	TransactionTypePayBill = "CustomerPayBillOnline"
	TimestampLayout        = "20060102150405"
)

// TokenResponse is the OAuth reply. expires_in arrives as a string from
// Daraja but some proxies send a number, so it is decoded loosely.
type TokenResponse struct {
	AccessToken string
	ExpiresIn   string
}

func (r *TokenResponse) UnmarshalJSON(b []byte) error {
	var raw struct {
		AccessToken string          `json:"access_token"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.AccessToken = raw.AccessToken
	r.ExpiresIn = strings.Trim(string(raw.ExpiresIn), `"`)
	return nil
}

// Lifetime returns the reported lifetime in seconds, or 0 when absent or unparseable.
func (r TokenResponse) Lifetime() int64 {
	n, err := strconv.ParseInt(r.ExpiresIn, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type STKPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode"`
	Password          string      `json:"Password"`
	Timestamp         string      `json:"Timestamp"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber"`
	CallBackURL       string      `json:"CallBackURL"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse reports the state of an earlier push. ResultCode is empty
// while the customer has not yet answered the prompt.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// ErrorResponse is the body Daraja returns on rejected requests.
type ErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Package gateway talks to the M-Pesa Daraja API: the OAuth credential
// exchange, STK push initiation and STK push status queries.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"mpesa-service/internal/apperrors"
	"mpesa-service/pkg/common"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// stillProcessingCode is what a status query returns while the customer
	// has not yet answered the prompt on their handset.
	stillProcessingCode = "500.001.1001"
)

// ErrStillProcessing is returned by QueryPush while the outcome is unknown.
var ErrStillProcessing = errors.New("transaction is still being processed")

type Client struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	HTTP           *http.Client
}

func NewClient(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Timeout:        timeout,
		HTTP:           &http.Client{Timeout: timeout},
	}
}

// GenerateToken exchanges the client credentials for a bearer token.
func (c *Client) GenerateToken(ctx context.Context) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	basic := base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))
	res, err := common.Get(ctx, c.HTTP, c.BaseURL+tokenPath, map[string]string{
		"Authorization": "Basic " + basic,
	})
	if err != nil {
		return nil, &apperrors.UpstreamAuthError{Err: err}
	}
	if !res.OK() {
		return nil, &apperrors.UpstreamAuthError{StatusCode: res.StatusCode, Body: string(res.Body)}
	}

	var token TokenResponse
	if err := res.Decode(&token); err != nil {
		return nil, &apperrors.UpstreamAuthError{StatusCode: res.StatusCode, Body: string(res.Body), Err: err}
	}
	if token.AccessToken == "" {
		return nil, &apperrors.UpstreamAuthError{StatusCode: res.StatusCode, Body: string(res.Body), Err: errors.New("empty access token")}
	}
	return &token, nil
}

// Push sends an STK push request. Any non-2xx status or a ResponseCode other
// than "0" is an UpstreamGatewayError carrying the gateway's body.
func (c *Client) Push(ctx context.Context, token string, req STKPushRequest) (*STKPushResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	res, err := common.Post(ctx, c.HTTP, c.BaseURL+pushPath, req, bearer(token))
	if err != nil {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkpush", Err: err}
	}
	if !res.OK() {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkpush", StatusCode: res.StatusCode, Body: string(res.Body)}
	}

	var out STKPushResponse
	if err := res.Decode(&out); err != nil {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkpush", StatusCode: res.StatusCode, Body: string(res.Body), Err: err}
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkpush", StatusCode: res.StatusCode, Body: string(res.Body)}
	}
	return &out, nil
}

// QueryPush asks the gateway for the outcome of an earlier push.
func (c *Client) QueryPush(ctx context.Context, token string, req STKQueryRequest) (*STKQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	res, err := common.Post(ctx, c.HTTP, c.BaseURL+queryPath, req, bearer(token))
	if err != nil {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkquery", Err: err}
	}
	if !res.OK() {
		var body ErrorResponse
		if res.Decode(&body) == nil && body.ErrorCode == stillProcessingCode {
			return nil, ErrStillProcessing
		}
		return nil, &apperrors.UpstreamGatewayError{Op: "stkquery", StatusCode: res.StatusCode, Body: string(res.Body)}
	}

	var out STKQueryResponse
	if err := res.Decode(&out); err != nil {
		return nil, &apperrors.UpstreamGatewayError{Op: "stkquery", StatusCode: res.StatusCode, Body: string(res.Body), Err: err}
	}
	return &out, nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

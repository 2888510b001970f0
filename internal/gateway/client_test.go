package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mpesa-service/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key", "secret", 2*time.Second)
}

func TestGenerateToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	})

	token, err := c.GenerateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token.AccessToken)
	assert.Equal(t, int64(3599), token.Lifetime())
}

func TestTokenLifetimeShapes(t *testing.T) {
	for body, want := range map[string]int64{
		`{"access_token":"a","expires_in":3600}`:   3600,
		`{"access_token":"a","expires_in":"120"}`:  120,
		`{"access_token":"a"}`:                     0,
		`{"access_token":"a","expires_in":null}`:   0,
		`{"access_token":"a","expires_in":"soon"}`: 0,
	} {
		var tr TokenResponse
		require.NoError(t, json.Unmarshal([]byte(body), &tr))
		assert.Equal(t, want, tr.Lifetime(), body)
	}
}

func TestGenerateTokenRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`))
	})

	_, err := c.GenerateToken(context.Background())
	var authErr *apperrors.UpstreamAuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "Invalid Authentication")
}

func TestPush(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mpesa/stkpush/v1/processrequest", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req STKPushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "254712345678", req.PartyA)
		assert.Equal(t, json.Number("50"), req.Amount)

		w.Write([]byte(`{"MerchantRequestID":"mr_1","CheckoutRequestID":"ws_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
	})

	res, err := c.Push(context.Background(), "tok", STKPushRequest{PartyA: "254712345678", Amount: "50"})
	require.NoError(t, err)
	assert.Equal(t, "ws_1", res.CheckoutRequestID)
	assert.Equal(t, "mr_1", res.MerchantRequestID)
}

func TestPushFailures(t *testing.T) {
	t.Run("http error keeps body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
		})
		_, err := c.Push(context.Background(), "tok", STKPushRequest{})
		var gwErr *apperrors.UpstreamGatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Contains(t, gwErr.Body, "Invalid PhoneNumber")
	})

	t.Run("non zero response code", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ResponseCode":"1","ResponseDescription":"rejected"}`))
		})
		_, err := c.Push(context.Background(), "tok", STKPushRequest{})
		var gwErr *apperrors.UpstreamGatewayError
		assert.True(t, errors.As(err, &gwErr))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c := NewClient(srv.URL, "key", "secret", 50*time.Millisecond)

		_, err := c.Push(context.Background(), "tok", STKPushRequest{})
		var gwErr *apperrors.UpstreamGatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Error(t, gwErr.Err)
	})
}

func TestQueryPush(t *testing.T) {
	t.Run("final result", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/mpesa/stkpushquery/v1/query", r.URL.Path)
			w.Write([]byte(`{"ResponseCode":"0","CheckoutRequestID":"ws_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
		})
		res, err := c.QueryPush(context.Background(), "tok", STKQueryRequest{CheckoutRequestID: "ws_1"})
		require.NoError(t, err)
		assert.Equal(t, "1032", res.ResultCode)
	})

	t.Run("still processing", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"requestId":"x","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`))
		})
		_, err := c.QueryPush(context.Background(), "tok", STKQueryRequest{CheckoutRequestID: "ws_1"})
		assert.ErrorIs(t, err, ErrStillProcessing)
	})
}

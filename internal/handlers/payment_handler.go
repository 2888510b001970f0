package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/gateway"
	"mpesa-service/internal/models"
	"mpesa-service/internal/repository"
	"mpesa-service/internal/services"
	"mpesa-service/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentAPI is served by *services.PaymentService.
type PaymentAPI interface {
	Initiate(ctx context.Context, req services.InitiateRequest) (*gateway.STKPushResponse, error)
	List(ctx context.Context, limit int) ([]models.Transaction, error)
	Get(ctx context.Context, checkoutRequestID string) (*models.Transaction, error)
	AccessToken(ctx context.Context) (string, error)
}

// CallbackAPI is served by *services.CallbackService.
type CallbackAPI interface {
	Handle(ctx context.Context, raw []byte) (int, common.CallbackAck)
}

type PaymentHandler struct {
	Payments  PaymentAPI
	Callbacks CallbackAPI
}

func NewPaymentHandler(payments PaymentAPI, callbacks CallbackAPI) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Callbacks: callbacks}
}

func (h *PaymentHandler) Register(r gin.IRouter) {
	r.POST("/payments", h.Initiate)
	r.POST("/payments/callback", h.Callback)
	r.GET("/payments", h.List)
	r.GET("/payments/:checkoutRequestId", h.Get)
	r.GET("/token", h.Token)
}

func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req services.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.Payments.Initiate(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, err)
		return
	}
	common.RespondOK(c, res, "STK push sent")
}

// MaxCallbackBytes caps the webhook body read into memory.
const MaxCallbackBytes = 64 << 10

// Callback always answers with the ack the gateway expects, never the API envelope.
func (h *PaymentHandler) Callback(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxCallbackBytes)
	raw, err := c.GetRawData()
	if err != nil {
		reason := "unreadable body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = "callback body too large"
		}
		c.JSON(http.StatusBadRequest, common.Rejected(reason))
		return
	}
	status, ack := h.Callbacks.Handle(c.Request.Context(), raw)
	c.JSON(status, ack)
}

func (h *PaymentHandler) List(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			common.RespondError(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	transactions, err := h.Payments.List(c.Request.Context(), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	common.RespondOK(c, transactions, "transactions")
}

func (h *PaymentHandler) Get(c *gin.Context) {
	trx, err := h.Payments.Get(c.Request.Context(), c.Param("checkoutRequestId"))
	if errors.Is(err, repository.ErrNotFound) {
		common.RespondError(c, http.StatusNotFound, "transaction not found", nil)
		return
	}
	if err != nil {
		respondWithError(c, err)
		return
	}
	common.RespondOK(c, trx, "transaction")
}

func (h *PaymentHandler) Token(c *gin.Context) {
	token, err := h.Payments.AccessToken(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	common.RespondOK(c, gin.H{"accessToken": token}, "access token")
}

// respondWithError maps err onto a status and attaches the gateway's own
// body when the failure came from upstream.
func respondWithError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	var data interface{}
	if body := apperrors.UpstreamBody(err); body != "" {
		if json.Valid([]byte(body)) {
			data = json.RawMessage(body)
		} else {
			data = body
		}
	}

	entry := logrus.WithFields(logrus.Fields{
		"request_id": c.GetString(RequestIDKey),
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}

	common.RespondError(c, status, err.Error(), data)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(payments PaymentAPI, callbacks CallbackAPI) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(), Metrics())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome To M-Pesa payment service",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	NewPaymentHandler(payments, callbacks).Register(r)
	return r
}

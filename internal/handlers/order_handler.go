package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/middleware"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// BookingCore creates orders and commits their seats
type BookingCore interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingResult, error)
	CreatePendingOrder(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.OrderWithDetails, error)
	ConfirmPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.BookingResult, error)
}

// OrderLifecycle drives orders after their seats are committed
type OrderLifecycle interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	CancellationsToday(ctx context.Context, userID uuid.UUID) (*models.CancellationQuota, error)
	ListActiveOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderWithDetails, error)
	TimeRemaining(ctx context.Context, userID, orderID uuid.UUID) (time.Duration, error)
}

// OrderHandler handles passenger order operations
type OrderHandler struct {
	booking   BookingCore
	lifecycle OrderLifecycle
	logger    *logrus.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(booking BookingCore, lifecycle OrderLifecycle, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{booking: booking, lifecycle: lifecycle, logger: logger}
}

// CreateBooking handles POST /api/v1/orders
func (h *OrderHandler) CreateBooking(c *gin.Context) {
	userCtx, req, ok := h.bindBooking(c)
	if !ok {
		return
	}

	result, err := h.booking.CreateBooking(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// CreatePendingOrder handles POST /api/v1/orders/pending
func (h *OrderHandler) CreatePendingOrder(c *gin.Context) {
	userCtx, req, ok := h.bindBooking(c)
	if !ok {
		return
	}

	order, err := h.booking.CreatePendingOrder(c.Request.Context(), userCtx.UserID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ConfirmPendingOrder handles POST /api/v1/orders/:id/confirm
func (h *OrderHandler) ConfirmPendingOrder(c *gin.Context) {
	userCtx, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}

	result, err := h.booking.ConfirmPendingOrder(c.Request.Context(), userCtx.UserID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ConfirmPayment handles POST /api/v1/orders/:id/pay.
// It stands in for the payment gateway callback, so ownership is checked here.
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	userCtx, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}

	if _, err := h.lifecycle.GetOrder(c.Request.Context(), userCtx.UserID, orderID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	order, err := h.lifecycle.ConfirmPayment(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment confirmed",
		"order":   order,
	})
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userCtx, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}

	order, err := h.lifecycle.CancelOrder(c.Request.Context(), userCtx.UserID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled",
		"order":   order,
	})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	orders, err := h.lifecycle.ListActiveOrders(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userCtx, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}

	order, err := h.lifecycle.GetOrder(c.Request.Context(), userCtx.UserID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// TimeRemaining handles GET /api/v1/orders/:id/time-remaining
func (h *OrderHandler) TimeRemaining(c *gin.Context) {
	userCtx, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}

	remaining, err := h.lifecycle.TimeRemaining(c.Request.Context(), userCtx.UserID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":          orderID,
		"remaining_seconds": int64(remaining / time.Second),
		"expired":           remaining == 0,
	})
}

// CancellationsToday handles GET /api/v1/cancellations/today
func (h *OrderHandler) CancellationsToday(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	quota, err := h.lifecycle.CancellationsToday(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quota)
}

func (h *OrderHandler) bindBooking(c *gin.Context) (middleware.UserContext, *models.CreateBookingRequest, bool) {
	userCtx, ok := requireUser(c)
	if !ok {
		return userCtx, nil, false
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return userCtx, nil, false
	}
	return userCtx, &req, true
}

func (h *OrderHandler) orderParams(c *gin.Context) (middleware.UserContext, uuid.UUID, bool) {
	userCtx, ok := requireUser(c)
	if !ok {
		return userCtx, uuid.Nil, false
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, models.ErrOrderNotFound.WithMessage("invalid order id %q", c.Param("id")))
		return userCtx, uuid.Nil, false
	}
	return userCtx, orderID, true
}

func requireUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "MISSING_USER_CONTEXT"})
		return userCtx, false
	}
	return userCtx, true
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/middleware"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/smarttransit/rail-booking-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBooking struct{ mock.Mock }

func (m *mockBooking) CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingResult, error) {
	args := m.Called(ctx, userID, req)
	result, _ := args.Get(0).(*models.BookingResult)
	return result, args.Error(1)
}

func (m *mockBooking) CreatePendingOrder(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.OrderWithDetails, error) {
	args := m.Called(ctx, userID, req)
	order, _ := args.Get(0).(*models.OrderWithDetails)
	return order, args.Error(1)
}

func (m *mockBooking) ConfirmPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.BookingResult, error) {
	args := m.Called(ctx, userID, orderID)
	result, _ := args.Get(0).(*models.BookingResult)
	return result, args.Error(1)
}

type mockLifecycle struct{ mock.Mock }

func (m *mockLifecycle) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockLifecycle) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, userID, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockLifecycle) CancellationsToday(ctx context.Context, userID uuid.UUID) (*models.CancellationQuota, error) {
	args := m.Called(ctx, userID)
	quota, _ := args.Get(0).(*models.CancellationQuota)
	return quota, args.Error(1)
}

func (m *mockLifecycle) ListActiveOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *mockLifecycle) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderWithDetails, error) {
	args := m.Called(ctx, userID, orderID)
	order, _ := args.Get(0).(*models.OrderWithDetails)
	return order, args.Error(1)
}

func (m *mockLifecycle) TimeRemaining(ctx context.Context, userID, orderID uuid.UUID) (time.Duration, error) {
	args := m.Called(ctx, userID, orderID)
	return args.Get(0).(time.Duration), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) QueryAvailability(ctx context.Context, trainNo, date string, seatType models.SeatType, from, to string) (int, error) {
	args := m.Called(ctx, trainNo, date, seatType, from, to)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) Summary(ctx context.Context, trainNo, date, from, to string) ([]models.SeatTypeAvailability, error) {
	args := m.Called(ctx, trainNo, date, from, to)
	summary, _ := args.Get(0).([]models.SeatTypeAvailability)
	return summary, args.Error(1)
}

type stubCleanup struct {
	report *services.SweepReport
	last   *services.SweepReport
}

func (s *stubCleanup) RunOnce(context.Context) *services.SweepReport { return s.report }
func (s *stubCleanup) LastRun() *services.SweepReport                { return s.last }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// withUser stands in for AuthMiddleware
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: userID, Roles: []string{"user"}})
		c.Next()
	}
}

func setupOrderRouter(userID uuid.UUID) (*gin.Engine, *mockBooking, *mockLifecycle) {
	gin.SetMode(gin.TestMode)
	booking := &mockBooking{}
	lifecycle := &mockLifecycle{}
	h := NewOrderHandler(booking, lifecycle, quietLogger())

	router := gin.New()
	api := router.Group("/api/v1", withUser(userID))
	api.POST("/orders", h.CreateBooking)
	api.POST("/orders/pending", h.CreatePendingOrder)
	api.POST("/orders/:id/confirm", h.ConfirmPendingOrder)
	api.POST("/orders/:id/pay", h.ConfirmPayment)
	api.POST("/orders/:id/cancel", h.CancelOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/:id/time-remaining", h.TimeRemaining)
	api.GET("/cancellations/today", h.CancellationsToday)
	return router, booking, lifecycle
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func validBookingBody() map[string]interface{} {
	return map[string]interface{}{
		"train_no":          "G1",
		"departure_date":    "2026-10-20",
		"departure_station": "北京南",
		"arrival_station":   "上海虹桥",
		"passengers":        []map[string]interface{}{{"passenger_id": uuid.New().String()}},
	}
}

func TestCreateBooking_Success(t *testing.T) {
	userID := uuid.New()
	router, booking, _ := setupOrderRouter(userID)

	orderID := uuid.New()
	booking.On("CreateBooking", mock.Anything, userID, mock.AnythingOfType("*models.CreateBookingRequest")).
		Return(&models.BookingResult{OrderID: orderID, OrderNumber: "EA20261020ABCDEF", Status: models.OrderStatusConfirmedUnpaid}, nil)

	w := doJSON(router, "POST", "/api/v1/orders", validBookingBody(), nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, orderID.String(), body["order_id"])
	assert.Equal(t, "confirmed_unpaid", body["status"])
	booking.AssertExpectations(t)
}

func TestCreateBooking_InvalidBody(t *testing.T) {
	router, booking, _ := setupOrderRouter(uuid.New())

	body := validBookingBody()
	delete(body, "train_no")
	w := doJSON(router, "POST", "/api/v1/orders", body, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, w)["code"])
	booking.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		lang       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid segment", models.ErrInvalidSegment.WithMessage("arrival before departure"), "zh-CN", http.StatusBadRequest, "INVALID_SEGMENT", "出发站或到达站不在该车次的运行区间内"},
		{"insufficient seats", models.ErrInsufficientSeats, "en-US,en;q=0.9", http.StatusConflict, "INSUFFICIENT_SEATS", "Not enough seats are available for this segment"},
		{"conflict", models.ErrConflict, "en", http.StatusConflict, "SEAT_CONFLICT", "The seat was just taken, please try again"},
		{"quota", models.ErrQuotaExceeded, "", http.StatusTooManyRequests, "CANCELLATION_LIMIT_EXCEEDED", "今日取消订单次数已达上限"},
		{"train not found", models.ErrTrainNotFound, "en", http.StatusNotFound, "TRAIN_NOT_FOUND", "This train does not run on the selected date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, booking, _ := setupOrderRouter(uuid.New())
			booking.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			w := doJSON(router, "POST", "/api/v1/orders", validBookingBody(), map[string]string{"Accept-Language": tt.lang})

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestCreateBooking_ConflictIsRetryable(t *testing.T) {
	router, booking, _ := setupOrderRouter(uuid.New())
	booking.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).Return(nil, models.ErrConflict)

	w := doJSON(router, "POST", "/api/v1/orders", validBookingBody(), nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["retryable"])
}

func TestCreateBooking_InternalError(t *testing.T) {
	router, booking, _ := setupOrderRouter(uuid.New())
	booking.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	w := doJSON(router, "POST", "/api/v1/orders", validBookingBody(), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestPendingOrderFlow(t *testing.T) {
	userID := uuid.New()
	router, booking, _ := setupOrderRouter(userID)

	orderID := uuid.New()
	booking.On("CreatePendingOrder", mock.Anything, userID, mock.Anything).
		Return(&models.OrderWithDetails{Order: models.Order{ID: orderID, Status: models.OrderStatusPending}}, nil)
	booking.On("ConfirmPendingOrder", mock.Anything, userID, orderID).
		Return(&models.BookingResult{OrderID: orderID, Status: models.OrderStatusConfirmedUnpaid}, nil)

	w := doJSON(router, "POST", "/api/v1/orders/pending", validBookingBody(), nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending", decodeBody(t, w)["status"])

	w = doJSON(router, "POST", "/api/v1/orders/"+orderID.String()+"/confirm", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed_unpaid", decodeBody(t, w)["status"])
	booking.AssertExpectations(t)
}

func TestConfirmPayment(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	t.Run("owner pays", func(t *testing.T) {
		router, _, lifecycle := setupOrderRouter(userID)
		lifecycle.On("GetOrder", mock.Anything, userID, orderID).Return(&models.OrderWithDetails{}, nil)
		lifecycle.On("ConfirmPayment", mock.Anything, orderID).
			Return(&models.Order{ID: orderID, Status: models.OrderStatusPaid}, nil)

		w := doJSON(router, "POST", "/api/v1/orders/"+orderID.String()+"/pay", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"paid"`)
		lifecycle.AssertExpectations(t)
	})

	t.Run("someone else's order", func(t *testing.T) {
		router, _, lifecycle := setupOrderRouter(userID)
		lifecycle.On("GetOrder", mock.Anything, userID, orderID).Return(nil, models.ErrOrderNotFound)

		w := doJSON(router, "POST", "/api/v1/orders/"+orderID.String()+"/pay", nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		lifecycle.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
	})

	t.Run("expired window", func(t *testing.T) {
		router, _, lifecycle := setupOrderRouter(userID)
		lifecycle.On("GetOrder", mock.Anything, userID, orderID).Return(&models.OrderWithDetails{}, nil)
		lifecycle.On("ConfirmPayment", mock.Anything, orderID).Return(nil, models.ErrOrderExpired)

		w := doJSON(router, "POST", "/api/v1/orders/"+orderID.String()+"/pay", nil, map[string]string{"Accept-Language": "en"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ORDER_EXPIRED", decodeBody(t, w)["code"])
	})
}

func TestCancelOrder(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	router, _, lifecycle := setupOrderRouter(userID)
	lifecycle.On("CancelOrder", mock.Anything, userID, orderID).
		Return(&models.Order{ID: orderID, Status: models.OrderStatusCancelled}, nil)

	w := doJSON(router, "POST", "/api/v1/orders/"+orderID.String()+"/cancel", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cancelled")
}

func TestInvalidOrderID(t *testing.T) {
	router, _, _ := setupOrderRouter(uuid.New())

	w := doJSON(router, "GET", "/api/v1/orders/not-a-uuid", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", decodeBody(t, w)["code"])
}

func TestListOrders(t *testing.T) {
	userID := uuid.New()
	router, _, lifecycle := setupOrderRouter(userID)
	lifecycle.On("ListActiveOrders", mock.Anything, userID).
		Return([]models.Order{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

	w := doJSON(router, "GET", "/api/v1/orders", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])
}

func TestTimeRemaining(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	router, _, lifecycle := setupOrderRouter(userID)
	lifecycle.On("TimeRemaining", mock.Anything, userID, orderID).Return(90*time.Second+500*time.Millisecond, nil)

	w := doJSON(router, "GET", "/api/v1/orders/"+orderID.String()+"/time-remaining", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(90), body["remaining_seconds"])
	assert.Equal(t, false, body["expired"])
}

func TestCancellationsToday(t *testing.T) {
	userID := uuid.New()
	router, _, lifecycle := setupOrderRouter(userID)
	lifecycle.On("CancellationsToday", mock.Anything, userID).
		Return(&models.CancellationQuota{Date: "2026-10-15", Used: 2, Limit: 5, Remaining: 3}, nil)

	w := doJSON(router, "GET", "/api/v1/cancellations/today", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["remaining"])
}

func TestGetAvailability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &mockLedger{}
	router := gin.New()
	router.GET("/availability", NewAvailabilityHandler(ledger, quietLogger()).GetAvailability)

	ledger.On("QueryAvailability", mock.Anything, "G1", "2026-10-20", models.SeatTypeSecondClass, "北京南", "南京南").Return(42, nil)
	ledger.On("Summary", mock.Anything, "G1", "2026-10-20", "北京南", "南京南").
		Return([]models.SeatTypeAvailability{{SeatType: models.SeatTypeBusiness, Available: 10, Total: 10}}, nil)

	query := func(seatType string) string {
		v := url.Values{}
		v.Set("train_no", "G1")
		v.Set("date", "2026-10-20")
		v.Set("from", "北京南")
		v.Set("to", "南京南")
		if seatType != "" {
			v.Set("seat_type", seatType)
		}
		return "/availability?" + v.Encode()
	}

	t.Run("count for one seat type", func(t *testing.T) {
		w := doJSON(router, "GET", query("二等座"), nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(42), decodeBody(t, w)["count"])
	})

	t.Run("summary", func(t *testing.T) {
		w := doJSON(router, "GET", query(""), nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "商务座")
	})

	t.Run("unknown seat type", func(t *testing.T) {
		w := doJSON(router, "GET", query("站票"), nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing parameters", func(t *testing.T) {
		w := doJSON(router, "GET", "/availability?train_no=G1", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminCleanup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		report     *services.SweepReport
		wantStatus int
	}{
		{"clean run", &services.SweepReport{ExpiredOrders: 3}, http.StatusOK},
		{"skipped", &services.SweepReport{Skipped: true}, http.StatusAccepted},
		{"step failed", &services.SweepReport{Errors: []string{"pending_orders: boom"}}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/cleanup", NewAdminHandler(&stubCleanup{report: tt.report}, quietLogger()).RunCleanup)

			w := doJSON(router, "POST", "/cleanup", nil, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	router := gin.New()
	router.GET("/last", NewAdminHandler(&stubCleanup{}, quietLogger()).LastCleanup)
	assert.Equal(t, http.StatusNotFound, doJSON(router, "GET", "/last", nil, nil).Code)
}

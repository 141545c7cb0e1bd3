package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestBookingError_IsMatchesOnCode(t *testing.T) {
	specific := ErrInsufficientSeats.WithMessage("requested %d seats, %d available", 3, 1)
	wrapped := fmt.Errorf("booking: %w", specific)

	assert.ErrorIs(t, wrapped, ErrInsufficientSeats)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, "INSUFFICIENT_SEATS: requested 3 seats, 1 available", specific.Error())

	be, ok := AsBookingError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeInsufficientSeats, be.Code)

	_, ok = AsBookingError(errors.New("plain"))
	assert.False(t, ok)
}

func TestBookingError_Wrap(t *testing.T) {
	cause := errors.New("serialization failure")
	err := ErrConflict.Wrap(cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable())
	assert.False(t, ErrQuotaExceeded.Retryable())
	assert.Contains(t, err.Error(), "serialization failure")
	assert.Nil(t, ErrConflict.Err, "sentinel must stay untouched")
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusConfirmedUnpaid, true},
		{OrderStatusPending, OrderStatusPaid, false},
		{OrderStatusConfirmedUnpaid, OrderStatusPaid, true},
		{OrderStatusConfirmedUnpaid, OrderStatusCancelled, true},
		{OrderStatusConfirmedUnpaid, OrderStatusExpired, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusExpired, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusExpired, OrderStatusConfirmedUnpaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, OrderStatusExpired.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.True(t, OrderStatusPaid.HoldsSeats())
	assert.False(t, OrderStatusPending.HoldsSeats())
}

func TestOrderPaymentWindow(t *testing.T) {
	now := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	deadline := now.Add(15 * time.Minute)
	order := &Order{Status: OrderStatusConfirmedUnpaid, PaymentExpiresAt: &deadline}

	assert.False(t, order.IsPaymentExpired(now))
	assert.False(t, order.IsPaymentExpired(deadline))
	assert.True(t, order.IsPaymentExpired(deadline.Add(time.Second)))
	assert.Equal(t, 15*time.Minute, order.TimeRemaining(now))
	assert.Zero(t, order.TimeRemaining(deadline.Add(time.Minute)))

	order.Status = OrderStatusPaid
	assert.False(t, order.IsPaymentExpired(deadline.Add(time.Hour)))
	assert.Zero(t, order.TimeRemaining(now))
}

func TestSeatTypes(t *testing.T) {
	assert.Equal(t, SeatTypeSecondClass, DefaultSeatType("G1"))
	assert.Equal(t, SeatTypeSecondClass, DefaultSeatType(" d312"))
	assert.Equal(t, SeatTypeHardSleeper, DefaultSeatType("K1234"))
	assert.True(t, SeatTypeSoftSleeper.IsValid())
	assert.False(t, SeatType("站票").IsValid())
	assert.Equal(t, "3-12A", SeatRef{CarNo: 3, SeatNo: "12A"}.Key())
}

func TestLocalizedMessage(t *testing.T) {
	assert.Equal(t, language.English, MatchLanguage("en-US,en;q=0.9"))
	assert.Equal(t, language.SimplifiedChinese, MatchLanguage("zh-CN"))
	assert.Equal(t, language.SimplifiedChinese, MatchLanguage(""))

	assert.Equal(t, "余票不足", LocalizedMessage(CodeInsufficientSeats, language.SimplifiedChinese))
	assert.Equal(t, "Order not found", LocalizedMessage(CodeOrderNotFound, language.English))
	assert.Equal(t, "UNKNOWN", LocalizedMessage(ErrorCode("UNKNOWN"), language.English))
}

package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UnpaidOrderChecker reports whether a user still has an order awaiting payment
type UnpaidOrderChecker interface {
	HasActiveUnpaidOrder(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RestrictUnpaidBooking blocks new bookings while the user has an unpaid order
// inside its payment window. Lookup failures are logged and let through.
func RestrictUnpaidBooking(checker UnpaidOrderChecker, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortUnauthorized(c, "unauthorized", "MISSING_USER_CONTEXT", "User context not found")
			return
		}

		unpaid, err := checker.HasActiveUnpaidOrder(c.Request.Context(), userCtx.UserID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userCtx.UserID).Error("Failed to check unpaid orders")
			c.Next()
			return
		}

		if unpaid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "unpaid_order_pending",
				"message": "您有未支付的订单，请先完成支付或取消订单",
				"code":    "UNPAID_ORDER_PENDING",
			})
			return
		}

		c.Next()
	}
}

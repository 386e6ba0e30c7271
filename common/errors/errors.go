package errors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error is an HTTP-aware application error rendered as {"error": Message}.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrTooManyRequests = New(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
	ErrInternalServer  = New(http.StatusInternalServerError, "Internal server error", nil)

	ErrInvalidToken = New(http.StatusUnauthorized, "Invalid token", nil)
	ErrMissingToken = New(http.StatusUnauthorized, "Authorization header missing", nil)
	ErrAdminOnly    = New(http.StatusForbidden, "Admin access required", nil)
)

// Abort writes e to the response and stops the handler chain.
func Abort(c *gin.Context, e *Error) {
	c.AbortWithStatusJSON(e.Code, gin.H{"error": e.Message})
}

// Recovery turns panics into a JSON 500 and logs the panic value.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrInternalServer.Message})
	})
}

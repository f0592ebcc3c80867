package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind classifies an application error. Each kind maps to one HTTP status.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindAuthentication      Kind = "AuthenticationError"
	KindAuthorization       Kind = "AuthorizationError"
	KindNotFound            Kind = "NotFoundError"
	KindConflict            Kind = "ConflictError"
	KindPaymentVerification Kind = "PaymentVerificationError"
	KindNetwork             Kind = "NetworkError"
	KindPersistence         Kind = "PersistenceError"
	KindUnavailable         Kind = "UnavailableError"
)

var kindStatus = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindAuthentication:      http.StatusUnauthorized,
	KindAuthorization:       http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindPaymentVerification: http.StatusBadRequest,
	KindNetwork:             http.StatusBadGateway,
	KindPersistence:         http.StatusInternalServerError,
	KindUnavailable:         http.StatusServiceUnavailable,
}

// Error represents an application error
type Error struct {
	Kind      Kind   `json:"kind"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, errors.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates a new Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Retryable: kind == KindNetwork,
		Err:       err,
	}
}

func Validation(message string) *Error     { return New(KindValidation, message, nil) }
func Authentication(message string) *Error { return New(KindAuthentication, message, nil) }
func Authorization(message string) *Error  { return New(KindAuthorization, message, nil) }
func NotFound(message string) *Error       { return New(KindNotFound, message, nil) }
func Conflict(message string) *Error       { return New(KindConflict, message, nil) }
func Unavailable(message string) *Error    { return New(KindUnavailable, message, nil) }

func PaymentVerification(message string) *Error {
	return New(KindPaymentVerification, message, nil)
}

// Network wraps a vendor/transport failure. Network errors are retryable at the caller's discretion.
func Network(message string, err error) *Error { return New(KindNetwork, message, err) }

// Persistence wraps a database failure.
func Persistence(message string, err error) *Error { return New(KindPersistence, message, err) }

// Sentinels for errors.Is checks. Match on kind only.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrAuthentication      = &Error{Kind: KindAuthentication}
	ErrAuthorization       = &Error{Kind: KindAuthorization}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrPaymentVerification = &Error{Kind: KindPaymentVerification}
	ErrNetwork             = &Error{Kind: KindNetwork}
	ErrPersistence         = &Error{Kind: KindPersistence}
	ErrUnavailable         = &Error{Kind: KindUnavailable}
)

// KindOf returns the kind of err, or "" when err is not an application error.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

const internalDetail = "Internal server error"

// Render converts err into a status code and a client-safe JSON body.
func Render(err error) (int, gin.H) {
	var appErr *Error
	if !stderrors.As(err, &appErr) || appErr.Kind == KindPersistence {
		return http.StatusInternalServerError, gin.H{"detail": internalDetail}
	}
	body := gin.H{"detail": appErr.Message}
	if appErr.Retryable {
		body["retryable"] = true
	}
	return appErr.Code, body
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := Render(err)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(err),
			)
		}
		c.AbortWithStatusJSON(status, body)
	}
}

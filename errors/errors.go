package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an AppError for propagation decisions.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindExternalAPI
	KindDuplicateKey
	KindStoreUnavailable
	KindNotFound
	KindInvalidInput
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindExternalAPI:
		return "external_api"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrRunInProgress is returned when an ingestion run is requested while
// another one is still active.
var ErrRunInProgress = &AppError{
	Kind:    KindConflict,
	Code:    http.StatusConflict,
	Message: "ingestion run already in progress",
	Op:      "Orchestrator.Run",
}

func newError(kind Kind, code int, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Configuration(op string, err error, message string) *AppError {
	return newError(KindConfiguration, http.StatusServiceUnavailable, op, err, message)
}

func ExternalAPI(op string, err error, message string) *AppError {
	return newError(KindExternalAPI, http.StatusBadGateway, op, err, message)
}

func DuplicateKey(op string, err error, message string) *AppError {
	return newError(KindDuplicateKey, http.StatusConflict, op, err, message)
}

func StoreUnavailable(op string, err error, message string) *AppError {
	return newError(KindStoreUnavailable, http.StatusServiceUnavailable, op, err, message)
}

func InvalidInput(op string, err error, message string) *AppError {
	return newError(KindInvalidInput, http.StatusBadRequest, op, err, message)
}

func RateLimited(op string, err error, message string) *AppError {
	return newError(KindRateLimited, http.StatusTooManyRequests, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, op, err, message)
}

// KindOf returns the kind of the outermost AppError in err's chain.
// Errors that carry no AppError are KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if pkgerrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether any AppError in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !pkgerrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

func IsConfiguration(err error) bool    { return Is(err, KindConfiguration) }
func IsExternalAPI(err error) bool      { return Is(err, KindExternalAPI) }
func IsDuplicateKey(err error) bool     { return Is(err, KindDuplicateKey) }
func IsStoreUnavailable(err error) bool { return Is(err, KindStoreUnavailable) }
func IsNotFound(err error) bool         { return Is(err, KindNotFound) }

// StatusCode maps err to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if pkgerrors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Package errors classifies gateway failures so callers can decide whether an
// error degrades to a lookup miss or is fatal.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrTypeConnection ErrorType = "connection"
	ErrTypeValidation ErrorType = "validation"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeNotFound   ErrorType = "not_found"
	ErrTypeInternal   ErrorType = "internal"
	ErrTypeTimeout    ErrorType = "timeout"
	// ErrTypeTLS marks failures building a per-connection TLS configuration.
	ErrTypeTLS ErrorType = "tls"
	// ErrTypeMalformed marks stored documents that cannot be decoded.
	ErrTypeMalformed ErrorType = "malformed"
)

// AppError is a classified error with optional cause and context.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context={"+strings.Join(kv, ", ")+"}")
	}
	return strings.Join(parts, ": ")
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext records a key/value pair on the error and returns it.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

func NotFoundError(resource string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: resource + " not found"}
}

func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

func TimeoutError(operation string) *AppError {
	return &AppError{Type: ErrTypeTimeout, Message: "timeout during " + operation}
}

func TLSError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeTLS, Message: msg, Cause: cause}
}

func MalformedError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeMalformed, Message: msg, Cause: cause}
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetType returns the type of the outermost AppError, ErrTypeInternal for
// other errors and "" for nil.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}

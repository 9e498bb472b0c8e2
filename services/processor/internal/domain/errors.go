package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeValidation ErrCode = "validation_error"
	CodeNotFound   ErrCode = "not_found"
	CodeProcessing ErrCode = "processing_error"
)

// AppError is the domain error shape. Meta carries structured context
// (order_id, raw payload fragments) so boundary logs stay searchable.
type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrNotFoundMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeNotFound, Message: msg, Meta: meta}
}

// ErrProcessingMeta marks a processing run that failed after its state was
// persisted. The consumer maps it to the retry/DLQ path.
func ErrProcessingMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeProcessing, Message: msg, Meta: meta}
}

// Infrastructure error kinds. Lower layers wrap causes onto these sentinels
// so callers dispatch with errors.Is without importing driver packages.
var (
	ErrRepository   = errors.New("repository error")
	ErrUnitOfWork   = errors.New("unit of work error")
	ErrConnection   = errors.New("broker connection error")
	ErrSubscription = errors.New("broker subscription error")
	ErrPublish      = errors.New("message publish error")
	ErrConsume      = errors.New("message consume error")
)

// IsValidation reports whether err is a validation-kind AppError. The
// consumer uses it to tell unrecoverable payload bugs (ack, no retry) from
// transient failures (retry/DLQ).
func IsValidation(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == CodeValidation
}

// IsNotFound reports whether err is a not-found AppError.
func IsNotFound(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == CodeNotFound
}

package utils

type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "validation_error"
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeBadConfig  ErrorCode = "configuration_error"
	ErrCodeInternal   ErrorCode = "internal_error"
)

// AppError is the error shape clients see in response envelopes.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NewAppError(code ErrorCode, message string, details ...string) *AppError {
	err := &AppError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

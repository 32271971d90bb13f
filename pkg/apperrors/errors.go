package apperrors

import "errors"

var (
	ErrEmptySource     = errors.New("source is empty")
	ErrInvalidEncoding = errors.New("source is not valid UTF-8 text")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrScriptNotFound  = errors.New("script not found")
)

package models

import "errors"

// ErrInvalidInput is returned when a payload field is missing, malformed or out
// of range. Validators wrap it with the offending field.
var ErrInvalidInput = errors.New("invalid input")

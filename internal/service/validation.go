package service

import "errors"

// ValidationError marks locally detected bad input. It is returned
// synchronously to the caller and never reaches the document store, unlike
// remote failures which surface as Error resource states.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package acquisition

import (
	"errors"
	"fmt"

	"github.com/onnwee/pixelclaim/internal/ownership"
)

// ErrSignatureUsed is returned when a purchase signature was already consumed.
var ErrSignatureUsed = ownership.ErrSignatureUsed

// ValidationError reports a malformed request. It is returned before any side
// effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// VerificationError reports a payment that did not verify. The purchase row
// stays recorded and no cells are allocated for it.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "payment verification failed: " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

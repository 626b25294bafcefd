package acquire

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSourceType is returned for card types with no acquisition
// strategy. Permanent: retrying cannot succeed.
var ErrUnsupportedSourceType = errors.New("unsupported source type")

// AcquisitionError wraps a transient acquisition failure. The operation
// may succeed on a later attempt.
type AcquisitionError struct {
	// Op names the failed step, e.g. "scrape" or "transcribe".
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed during %s: %v", e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

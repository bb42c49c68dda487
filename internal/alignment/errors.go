package alignment

import (
	"fmt"

	"scriptsync/internal/services"
)

// StructuredParseError reports a structured response whose envelope could not be
// decoded. Raw holds the response exactly as received so it can be retained.
type StructuredParseError struct {
	Raw string
	Err error
}

func (e *StructuredParseError) Error() string {
	if e.Err == nil {
		return "structured response envelope is malformed"
	}
	return fmt.Sprintf("structured response envelope is malformed: %v", e.Err)
}

// Unwrap exposes both the cause and services.ErrStructuredParse.
func (e *StructuredParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrStructuredParse}
	}
	return []error{services.ErrStructuredParse, e.Err}
}

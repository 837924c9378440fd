package taxonomy

import "fmt"

// LoadError is returned when a taxonomy cannot be built: malformed catalog
// data, duplicate skill ids, empty surface forms or a surface form claimed by
// two skills. It is fatal at startup.
type LoadError struct {
	EntryID string
	Field   string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.EntryID != "" {
		msg = fmt.Sprintf("skill %q: %s", e.EntryID, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("taxonomy load error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("taxonomy load error: %s", msg)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

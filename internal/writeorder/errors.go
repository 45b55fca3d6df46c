package writeorder

import "fmt"

// PanicError reports a queued mutation that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("queued mutation panicked: %v", e.Value)
}

package retry

import (
	"fmt"
	"strings"
)

// MultiError 所有尝试的错误，Unwrap 返回最后一次
type MultiError struct {
	Errors   []error
	Attempts int
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "retry failed: no errors"
	}
	return e.Errors[len(e.Errors)-1].Error()
}

func (e *MultiError) Unwrap() error {
	return e.LastError()
}

func (e *MultiError) LastError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// AllErrors 每次尝试一行
func (e *MultiError) AllErrors() string {
	var b strings.Builder
	fmt.Fprintf(&b, "retry failed after %d attempts:", e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  attempt %d: %v", i+1, err)
	}
	return b.String()
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yishak-cs/restaurant_orders/internal/database"
)

// ValidationError reports user input that was rejected before anything was written
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StoreError is a failed document store call
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err comes from a missing document
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// fieldErrors collects the names of invalid fields in order
type fieldErrors []string

func (f *fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		*f = append(*f, field)
	}
}

func (f *fieldErrors) check(field string, ok bool) {
	if !ok {
		*f = append(*f, field)
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f, Message: message}
}

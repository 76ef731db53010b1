package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidID        = errors.New("invalid product identifier")
	ErrInvalidHistoryID = errors.New("invalid price history identifier")
)

// ErrInvalidPaging is returned for page/perPage values that are not positive integers.
var ErrInvalidPaging = &ArgumentError{Message: "page and perPage query parameters must be valid numbers"}

// ErrPerPageTooLarge is returned when perPage exceeds maxPerPage.
var ErrPerPageTooLarge = &ArgumentError{Message: fmt.Sprintf("perPage must not exceed %d", maxPerPage)}

// ErrNoUpdateFields is returned when a partial update carries no updatable field.
var ErrNoUpdateFields = &ArgumentError{Message: "no valid fields to update"}

// ArgumentError reports caller input rejected before any store access.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Message
}

// ValidationError reports a document that does not satisfy the product schema.
type ValidationError struct {
	Fields map[string]string
	err    error
}

func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate product: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// drop the root struct name: "Product.history[0].price" -> "history[0].price"
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = fe.Tag()
	}
	return &ValidationError{Fields: fields, err: err}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s failed on rule %q", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// DuplicateKeyError reports a write rejected by a unique index.
type DuplicateKeyError struct {
	Key string
	err error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s: %v", e.Key, e.err)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.err
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient          = errors.New("transient failure")
	ErrPermanent          = errors.New("permanent failure")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotAccessible      = errors.New("file not accessible")
	ErrNameSpaceExhausted = errors.New("name space exhausted")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPermanent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err carries the transient marker.
func IsTransient(err error) bool {
	return err != nil && errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
)

var (
	ErrNavigation  = errors.New("navigation failed")
	ErrPersistence = errors.New("persistence failed")
	ErrPanic       = errors.New("recovered panic")
)

// Error classes reported in logs and metrics.
const (
	ClassLaunch      = "launch"
	ClassTimeout     = "timeout"
	ClassCanceled    = "canceled"
	ClassNavigation  = "navigation"
	ClassPersistence = "persistence"
	ClassPanic       = "panic"
	ClassOther       = "other"
)

// Classify maps an error to one of the Class constants.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPanic):
		return ClassPanic
	case errors.Is(err, chrome.ErrLaunch):
		return ClassLaunch
	case errors.Is(err, ErrPersistence):
		return ClassPersistence
	case errors.Is(err, ErrNavigation):
		return ClassNavigation
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	default:
		return ClassOther
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

package service

import (
	"errors"

	"github.com/strangerdangercoffee/portal/internal/domain"
)

// UserMessage is the text shown in the banner for err. Backend messages
// are surfaced verbatim.
func UserMessage(err error) string {
	var (
		v    *domain.ErrValidation
		ext  *domain.ErrExternalService
		open *domain.ErrCircuitOpen
		tout *domain.ErrTimeout
	)
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &ext):
		if ext.Err != nil {
			return ext.Err.Error()
		}
		return "service unavailable"
	case errors.As(err, &open):
		return "Service temporarily unavailable. Please try again shortly."
	case errors.As(err, &tout):
		return "The request timed out. Please try again."
	}
	return rootCause(err).Error()
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// failureBanner shows validation messages as-is and prefixes anything else.
func failureBanner(prefix string, err error) *domain.Banner {
	var v *domain.ErrValidation
	if errors.As(err, &v) {
		return domain.ErrorBanner(v.Message)
	}
	return domain.ErrorBanner(prefix + UserMessage(err))
}

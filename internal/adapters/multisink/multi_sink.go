package multisink

import (
	"context"
	"errors"
	"fmt"

	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/port"
)

// MultiSinkAdapter fans every listing out to several sinks. A write error on
// any sink fails the write; the caller decides whether that aborts the run.
type MultiSinkAdapter struct {
	sinks []port.ListingSinkPort
}

func NewMultiSinkAdapter(sinks ...port.ListingSinkPort) (*MultiSinkAdapter, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("multi sink: at least one sink is required")
	}
	return &MultiSinkAdapter{sinks: sinks}, nil
}

func (m *MultiSinkAdapter) Write(ctx context.Context, listing *domain.Listing) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, listing); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSinkAdapter) Flush() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink even when some of them fail.
func (m *MultiSinkAdapter) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

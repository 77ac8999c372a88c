package publisher

import (
	"context"
	"errors"

	"reader_sync/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, signal domain.Signal) error
}

// Fanout delivers each signal to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, signal domain.Signal) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, signal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

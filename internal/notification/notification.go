// Package notification доставляет события о записях внешним получателям.
// Ошибки доставки не откатывают запись, их логирует BookingService.
package notification

import (
	"context"
	"errors"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
)

// NameResolver отображаемые имена для текста уведомлений
type NameResolver interface {
	PractitionerName(ctx context.Context, id string) string
	LocationName(ctx context.Context, id string) string
}

// Fanout рассылает событие всем получателям, сбой одного не мешает остальным
type Fanout []service.Notifier

func (f Fanout) Notify(ctx context.Context, event model.BookingEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/models"
)

const eventBufferSize = 256

type eventBus struct {
	ch     chan models.Event
	logger *logger.Logger
}

func newEventBus(size int, logger *logger.Logger) *eventBus {
	return &eventBus{ch: make(chan models.Event, size), logger: logger}
}

// publish never blocks; an event that does not fit is dropped.
func (b *eventBus) publish(ev models.Event) {
	select {
	case b.ch <- ev:
	default:
		b.logger.Warn().
			Str("func", "eventBus.publish").
			Str("type", string(ev.Type)).
			Str("entity", ev.Entity.String()).
			Msg("event channel full, dropping event")
	}
}

func (b *eventBus) updated(ref models.EntityRef) {
	b.publish(models.Event{Type: models.EventUpdated, Entity: ref})
}

func (b *eventBus) failed(req *models.SyncRequest, err error) {
	b.publish(models.Event{
		Type:      models.EventError,
		Entity:    req.Target,
		ErrorKind: errorKind(err),
		RequestID: req.ID,
		Err:       err,
	})
}

func (b *eventBus) events() <-chan models.Event {
	return b.ch
}

package client

import (
	"context"
	"fmt"
	"io"

	"github.com/MKhiriev/go-ref-sync/models"
)

// eventPrinter writes engine events to out while watching.
type eventPrinter struct {
	events <-chan models.Event
	out    io.Writer

	cancel context.CancelFunc
	done   chan struct{}
}

func newEventPrinter(events <-chan models.Event, out io.Writer) *eventPrinter {
	return &eventPrinter{events: events, out: out}
}

func (p *eventPrinter) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-p.events:
				fmt.Fprintln(p.out, formatEvent(ev))
			}
		}
	}()
}

func (p *eventPrinter) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func formatEvent(ev models.Event) string {
	switch ev.Type {
	case models.EventUpdated:
		return "updated " + ev.Entity.String()
	case models.EventBatchComplete:
		return "local changes uploaded"
	case models.EventConflict:
		return fmt.Sprintf("conflict on %s: run `resolve %s %s` to keep your edit or add --discard",
			ev.Entity, ev.Entity.Type, ev.Entity.Key)
	case models.EventError:
		return fmt.Sprintf("error (%s) on request %s: %v", ev.ErrorKind, ev.RequestID, ev.Err)
	}
	return string(ev.Type)
}

package realtime

import (
	"context"
	"strings"

	"github.com/ltessier/courier/internal/adapters/metrics"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/pkg/protocol"
)

// Broker bridges the fabric and the local hub. Services publish typed
// events through it; the consume loop fans incoming publications out to
// local subscribers.
type Broker struct {
	hub    *Hub
	fabric ports.Fabric
}

func NewBroker(hub *Hub, fabric ports.Fabric) *Broker {
	return &Broker{hub: hub, fabric: fabric}
}

// Publish encodes an event and puts it on the fabric. Every instance,
// this one included, receives it through Run.
func (b *Broker) Publish(ctx context.Context, room, eventType string, payload any) error {
	frame, err := protocol.Encode(eventType, payload)
	if err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
	return b.fabric.Publish(ctx, room, frame)
}

// Run consumes the fabric until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	return b.fabric.Run(ctx, b.handle)
}

func (b *Broker) handle(room string, frame []byte) {
	// Force-disconnect is the one event the instance acts on itself
	// instead of forwarding verbatim.
	if userID, ok := strings.CutPrefix(room, "user:"); ok {
		if env, err := protocol.Decode(frame); err == nil && env.Type == protocol.TypeForceDisconnect {
			b.hub.ForceDisconnect(userID, frame)
			return
		}
	}
	b.hub.Broadcast(room, frame)
}

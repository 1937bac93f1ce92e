// Package feed propagates room snapshots. Writes to the document store
// raise a Postgres notification; the relay turns each notification into a
// full-snapshot publish on NATS, and clients subscribe per room code.
// Delivery is best-effort, at-least-once; consumers treat every snapshot as
// a whole-document replacement, so redelivery is harmless.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// SubjectPrefix is the NATS subject root; the room code is the last token.
const SubjectPrefix = "room.snapshot"

// Snapshot is the wire envelope for one room document.
type Snapshot struct {
	Code        string       `json:"code"`
	Version     int64        `json:"version"`
	PublishedAt time.Time    `json:"published_at"`
	Room        *models.Room `json:"room"`
}

// Publisher delivers room snapshots to subscribers.
type Publisher interface {
	PublishSnapshot(ctx context.Context, room *models.Room) error
}

// NATSPublisher publishes snapshots to room.snapshot.<code>.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) PublishSnapshot(_ context.Context, room *models.Room) error {
	env := Snapshot{
		Code:        room.Code,
		Version:     room.Version,
		PublishedAt: time.Now().UTC(),
		Room:        room,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, room.Code)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	log.Debug().
		Str("subject", subject).
		Int64("version", env.Version).
		Msg("snapshot published")
	return nil
}

// Connect dials NATS with reconnect behavior suitable for a long-lived
// relay or gateway process.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/feed"
	"github.com/fastbreakhq/fastbreak/internal/models"
)

// RoomEvent is the envelope pushed to websocket clients.
type RoomEvent struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Room      *models.Room `json:"room"`
	Version   int64        `json:"version"`
}

// SnapshotConsumer bridges the change feed to the connection manager: every
// room snapshot on the feed is re-encoded as a client event and fanned out
// to that room's pool.
type SnapshotConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
}

// NewSnapshotConsumer creates a consumer on an existing NATS connection.
func NewSnapshotConsumer(cm *ConnectionManager, nc *nats.Conn) *SnapshotConsumer {
	return &SnapshotConsumer{connectionManager: cm, nc: nc}
}

// Start subscribes to every room's snapshot subject. Decoding failures are
// logged and skipped; a malformed message must not wedge the feed.
func (sc *SnapshotConsumer) Start(ctx context.Context) error {
	subject := feed.SubjectPrefix + ".>"
	sub, err := sc.nc.Subscribe(subject, sc.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	sc.sub = sub
	log.Info().Str("subject", subject).Msg("snapshot consumer started")

	<-ctx.Done()
	return sc.Stop()
}

// Stop drains the subscription.
func (sc *SnapshotConsumer) Stop() error {
	if sc.sub == nil {
		return nil
	}
	if err := sc.sub.Drain(); err != nil {
		return fmt.Errorf("drain snapshot subscription: %w", err)
	}
	log.Info().Msg("snapshot consumer stopped")
	return nil
}

func (sc *SnapshotConsumer) handleMessage(msg *nats.Msg) {
	code := strings.TrimPrefix(msg.Subject, feed.SubjectPrefix+".")
	rm, err := feed.DecodeSnapshot(msg.Data)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("dropping malformed snapshot")
		return
	}

	payload, err := json.Marshal(RoomEvent{
		Type:      "room_snapshot",
		Timestamp: time.Now().UTC(),
		Room:      rm,
		Version:   rm.Version,
	})
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to encode room event")
		return
	}
	sc.connectionManager.BroadcastToRoom(code, payload)
}

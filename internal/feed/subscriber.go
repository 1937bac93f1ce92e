package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/fastbreakhq/fastbreak/internal/models"
)

// Subscriber delivers decoded room snapshots for a single room code.
type Subscriber struct {
	nc *nats.Conn
}

// NewSubscriber wraps an established NATS connection.
func NewSubscriber(nc *nats.Conn) *Subscriber {
	return &Subscriber{nc: nc}
}

// Subscribe starts a push subscription for one room. The returned channel
// never closes; callers stop consuming and invoke the cancel function on
// teardown. A slow consumer loses intermediate snapshots, never the
// ordering of the ones it sees.
func (s *Subscriber) Subscribe(_ context.Context, code string) (<-chan *models.Room, func(), error) {
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, code)
	ch := make(chan *models.Room, 16)
	done := make(chan struct{})

	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		room, err := DecodeSnapshot(msg.Data)
		if err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("dropping undecodable snapshot")
			return
		}
		select {
		case <-done:
		case ch <- room:
		default:
			// Channel full: drop. The poller or the next publish catches
			// the consumer up.
			log.Warn().Str("room_code", code).Msg("subscriber backlog full, snapshot dropped")
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Error().Err(err).Str("subject", subject).Msg("failed to unsubscribe")
			}
			close(done)
		})
	}
	return ch, cancel, nil
}

// DecodeSnapshot unpacks a wire envelope into a versioned room document.
func DecodeSnapshot(data []byte) (*models.Room, error) {
	var env Snapshot
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	if env.Room == nil {
		return nil, fmt.Errorf("snapshot for %q has no room document", env.Code)
	}
	env.Room.Version = env.Version
	return env.Room, nil
}

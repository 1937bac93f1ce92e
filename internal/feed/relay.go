package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/fastbreakhq/fastbreak/internal/models"
	"github.com/fastbreakhq/fastbreak/internal/room"
)

// RelayConfig configures the LISTEN/NOTIFY to NATS bridge.
type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // channel the store notifies on
	FallbackInterval time.Duration // sweep for writes whose notification was lost
	PingInterval     time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
}

// DefaultRelayConfig returns production defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    room.NotifyChannel,
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
	}
}

// Relay listens for Postgres notifications raised by room writes, loads the
// committed document, and republishes it as a full snapshot on NATS. A
// fallback sweep re-publishes recently updated rooms so a lost notification
// only delays, never loses, propagation.
type Relay struct {
	db        *sql.DB
	listener  *pq.Listener
	publisher Publisher
	cfg       RelayConfig
	lastSweep time.Time
}

// NewRelay opens the notification listener.
func NewRelay(db *sql.DB, publisher Publisher, cfg RelayConfig) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("relay listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen on channel %s: %w", cfg.NotifyChannel, err)
	}
	log.Info().Str("channel", cfg.NotifyChannel).Msg("relay listening for room notifications")

	return &Relay{
		db:        db,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
		lastSweep: time.Now().UTC(),
	}, nil
}

// Start runs until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	log.Info().
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Dur("ping_interval", r.cfg.PingInterval).
		Msg("relay started")

	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	pingTicker := time.NewTicker(r.cfg.PingInterval)
	defer fallbackTicker.Stop()
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// Connection to the channel was lost; pq reconnects.
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to relay notification")
			}
		case <-fallbackTicker.C:
			if err := r.sweepRecent(ctx); err != nil {
				log.Error().Err(err).Msg("fallback sweep failed")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping relay listener")
			}
		}
	}
}

// Stop closes the notification listener.
func (r *Relay) Stop() error {
	return r.listener.Close()
}

// handleNotification loads the notified room and publishes its snapshot.
// A room deleted between notify and fetch is skipped.
func (r *Relay) handleNotification(ctx context.Context, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("invalid room id in notification: %w", err)
	}
	rm, err := r.fetchRoom(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug().Str("room_id", id.String()).Msg("notified room no longer exists")
		return nil
	}
	if err != nil {
		return err
	}
	return r.publishWithRetry(ctx, rm)
}

// sweepRecent re-publishes every room written since the last sweep,
// covering notifications dropped while the listener was reconnecting.
func (r *Relay) sweepRecent(ctx context.Context) error {
	since := r.lastSweep
	r.lastSweep = time.Now().UTC()

	rows, err := r.db.QueryContext(ctx,
		`SELECT doc, version FROM rooms WHERE updated_at > $1`, since)
	if err != nil {
		return fmt.Errorf("failed to query recently updated rooms: %w", err)
	}
	defer rows.Close()

	published := 0
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			log.Error().Err(err).Msg("skipping unscannable room in sweep")
			continue
		}
		if err := r.publishWithRetry(ctx, rm); err != nil {
			log.Error().Err(err).Str("room_code", rm.Code).Msg("sweep publish failed")
			continue
		}
		published++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sweep iteration failed: %w", err)
	}
	if published > 0 {
		log.Debug().Int("count", published).Msg("sweep republished rooms")
	}
	return nil
}

type docScanner interface {
	Scan(dest ...any) error
}

func (r *Relay) fetchRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc, version FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

func scanRoom(row docScanner) (*models.Room, error) {
	var (
		doc     pqtype.NullRawMessage
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	if !doc.Valid {
		return nil, errors.New("room row has null document")
	}
	var rm models.Room
	if err := json.Unmarshal(doc.RawMessage, &rm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room document: %w", err)
	}
	rm.Version = version
	return &rm, nil
}

// publishWithRetry publishes a snapshot with linear backoff.
func (r *Relay) publishWithRetry(ctx context.Context, rm *models.Room) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := r.publisher.PublishSnapshot(ctx, rm); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("room_code", rm.Code).
				Msg("snapshot publish failed, retrying")
			continue
		}
		return nil
	}
	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

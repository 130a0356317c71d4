package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/harborgrid-justin/cadcore/common/mlog"
	"github.com/harborgrid-justin/cadcore/common/mpostgres"
	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// Postgres is the durable event store. On a successful return of
// AppendEvents, the batch has been committed to the primary and survives
// a process crash.
type Postgres struct {
	connection *mpostgres.PostgresConnection
	logger     mlog.Logger
}

// NewPostgres returns a durable store bound to an already-configured
// connection hub. Connection is established lazily on first use via
// PostgresConnection.GetDB.
func NewPostgres(pc *mpostgres.PostgresConnection) *Postgres {
	return &Postgres{connection: pc, logger: pc.Logger}
}

func (s *Postgres) AppendEvents(ctx context.Context, events []EventData) ([]cadmodel.StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, 4)
	byStream := make(map[string][]EventData)

	for _, e := range events {
		if _, ok := byStream[e.StreamID]; !ok {
			order = append(order, e.StreamID)
		}

		byStream[e.StreamID] = append(byStream[e.StreamID], e)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var stored []cadmodel.StoredEvent

	for _, streamID := range order {
		streamEvents := byStream[streamID]

		var current uint64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1 FOR UPDATE`,
			streamID,
		).Scan(&current); err != nil {
			return nil, fmt.Errorf("reading stream version: %w", err)
		}

		if first := streamEvents[0]; first.ExpectedVersion >= 0 {
			expected := uint64(first.ExpectedVersion)
			if expected != current {
				return nil, newConcurrencyConflict(streamID, first.ExpectedVersion, current)
			}
		}

		for i, e := range streamEvents {
			version := current + uint64(i) + 1

			metadataJSON, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("marshalling event metadata: %w", err)
			}

			eventID := uuid.NewString()

			var sequence uint64
			var timestamp sql.NullTime

			if err := tx.QueryRowContext(ctx, `
				INSERT INTO events
					(event_id, stream_id, event_type, version, event_version, correlation_id, causation_id, metadata, payload)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING sequence, "timestamp"`,
				eventID, streamID, e.EventType, version, "1", nullableString(e.CorrelationID), nullableString(e.CausationID), metadataJSON, e.Data,
			).Scan(&sequence, &timestamp); err != nil {
				return nil, fmt.Errorf("inserting event: %w", err)
			}

			stored = append(stored, cadmodel.StoredEvent{
				EventMetadata: cadmodel.EventMetadata{
					EventID:       eventID,
					StreamID:      streamID,
					EventType:     e.EventType,
					Version:       version,
					Sequence:      sequence,
					Timestamp:     timestamp.Time,
					CorrelationID: e.CorrelationID,
					CausationID:   e.CausationID,
					Metadata:      e.Metadata,
					EventVersion:  "1",
				},
				Payload: e.Data,
			})
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM deleted_streams WHERE stream_id = $1`, streamID); err != nil {
			return nil, fmt.Errorf("clearing tombstone: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing append transaction: %w", err)
	}

	return stored, nil
}

func (s *Postgres) ReadStream(ctx context.Context, streamID string, fromVersion uint64, maxCount int) (StreamSlice, error) {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return StreamSlice{}, err
	}

	if deleted, err := s.isDeleted(ctx, streamID); err != nil {
		return StreamSlice{}, err
	} else if deleted {
		return StreamSlice{StreamID: streamID}, nil
	}

	limit := maxCount
	if limit < 0 {
		limit = 1<<31 - 1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT event_id, event_type, version, sequence, "timestamp", correlation_id, causation_id, metadata, payload, event_version
		FROM events
		WHERE stream_id = $1 AND version >= $2
		ORDER BY version ASC
		LIMIT $3`,
		streamID, fromVersion, limit,
	)
	if err != nil {
		return StreamSlice{}, fmt.Errorf("reading stream: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows, streamID)
	if err != nil {
		return StreamSlice{}, err
	}

	version, err := s.GetStreamVersion(ctx, streamID)
	if err != nil {
		return StreamSlice{}, err
	}

	return StreamSlice{StreamID: streamID, CurrentVersion: version, Events: events}, nil
}

func (s *Postgres) ReadStreamAll(ctx context.Context, streamID string) (StreamSlice, error) {
	return s.ReadStream(ctx, streamID, 0, -1)
}

func (s *Postgres) ReadAll(ctx context.Context, fromSequence uint64, maxCount int) ([]cadmodel.StoredEvent, error) {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	limit := maxCount
	if limit < 0 {
		limit = 1<<31 - 1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT event_id, stream_id, event_type, version, sequence, "timestamp", correlation_id, causation_id, metadata, payload, event_version
		FROM events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2`,
		fromSequence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading global log: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows, "")
}

func (s *Postgres) GetStreamVersion(ctx context.Context, streamID string) (uint64, error) {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	if deleted, err := s.isDeleted(ctx, streamID); err != nil {
		return 0, err
	} else if deleted {
		return 0, nil
	}

	var version uint64
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1`, streamID,
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading stream version: %w", err)
	}

	return version, nil
}

func (s *Postgres) StreamExists(ctx context.Context, streamID string) (bool, error) {
	version, err := s.GetStreamVersion(ctx, streamID)
	if err != nil {
		return false, err
	}

	return version > 0, nil
}

func (s *Postgres) DeleteStream(ctx context.Context, streamID string) error {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO deleted_streams (stream_id) VALUES ($1) ON CONFLICT DO NOTHING`, streamID)
	if err != nil {
		return fmt.Errorf("tombstoning stream: %w", err)
	}

	return nil
}

func (s *Postgres) GetGlobalSequence(ctx context.Context) (uint64, error) {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	var sequence uint64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM events`).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("reading global sequence: %w", err)
	}

	return sequence, nil
}

func (s *Postgres) isDeleted(ctx context.Context, streamID string) (bool, error) {
	db, err := s.connection.GetDB(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deleted_streams WHERE stream_id = $1)`, streamID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking tombstone: %w", err)
	}

	return exists, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner, fixedStreamID string) ([]cadmodel.StoredEvent, error) {
	var events []cadmodel.StoredEvent

	for rows.Next() {
		var (
			meta         cadmodel.EventMetadata
			streamID     = fixedStreamID
			correlation  sql.NullString
			causation    sql.NullString
			metadataJSON []byte
			payload      []byte
		)

		var scanErr error
		if fixedStreamID == "" {
			scanErr = rows.Scan(&meta.EventID, &streamID, &meta.EventType, &meta.Version, &meta.Sequence,
				&meta.Timestamp, &correlation, &causation, &metadataJSON, &payload, &meta.EventVersion)
		} else {
			scanErr = rows.Scan(&meta.EventID, &meta.EventType, &meta.Version, &meta.Sequence,
				&meta.Timestamp, &correlation, &causation, &metadataJSON, &payload, &meta.EventVersion)
		}

		if scanErr != nil {
			return nil, fmt.Errorf("scanning event row: %w", scanErr)
		}

		meta.StreamID = streamID
		meta.CorrelationID = correlation.String
		meta.CausationID = causation.String

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &meta.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling event metadata: %w", err)
			}
		}

		events = append(events, cadmodel.StoredEvent{EventMetadata: meta, Payload: payload})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

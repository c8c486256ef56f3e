// Copyright (c) 2026 TreeAtlas. All rights reserved.
// Author: dev@treeatlas.cr

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arboria/treeatlas/internal/platform/apperr"
	"github.com/arboria/treeatlas/internal/platform/dberr"
	"github.com/arboria/treeatlas/pkg/pagination"
	"github.com/arboria/treeatlas/pkg/uuidv7"
)

// # PostgreSQL Store

// PostgresRecorder implements the [Recorder] interface on the
// system.auditlog table.
//
// # Immutability
//
// The store only ever INSERTs and SELECTs. There is deliberately no Update
// or Delete method; retention is handled out-of-band by operations tooling.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a new PostgreSQL implementation of the Recorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

/*
Record appends a single event row to system.auditlog.

Description: Assigns a time-sortable UUIDv7 identifier and server-side
timestamp when the caller left them zero, then persists the row.

Parameters:
  - context: context.Context
  - entry: *Entry

Returns:
  - error: Validation failures (unknown event type) or persistence failures
*/
func (recorder *PostgresRecorder) Record(context context.Context, entry *Entry) error {

	// Reject event types outside the closed enumeration.
	if !entry.EventType.Valid() {
		return apperr.Internal(fmt.Errorf("audit_store_unknown_event_type: %q", entry.EventType))
	}

	if entry.ID == "" {
		entry.ID = uuidv7.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Marshal metadata to jsonb. A nil map is stored as SQL NULL.
	var metadata []byte
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit_store_metadata_marshal_failed: %w", err)
		}
		metadata = encoded
	}

	const query = `
		INSERT INTO system.auditlog (
			id, userid, eventtype, ipaddress, useragent, metadata, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := recorder.pool.Exec(context, query,
		entry.ID,
		entry.UserID,
		string(entry.EventType),
		entry.IPAddress,
		entry.UserAgent,
		metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "record_audit_entry")
	}

	return nil
}

/*
List returns a reverse-chronological page of events from system.auditlog.

Description: Applies optional user/event-type filters, counts the total for
pagination metadata, then fetches the requested page newest-first.

Parameters:
  - context: context.Context
  - filter: ListFilter
  - params: pagination.Params

Returns:
  - []Entry: Hydrated page of events
  - int: Total matching count
  - error: Retrieval failures
*/
func (recorder *PostgresRecorder) List(context context.Context, filter ListFilter, params pagination.Params) ([]Entry, int, error) {

	// Build the WHERE clause from the optional filters.
	where := "WHERE TRUE"
	args := []any{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND userid = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		where += fmt.Sprintf(" AND eventtype = $%d", len(args))
	}

	// Total count for the pagination meta block.
	countQuery := "SELECT COUNT(*) FROM system.auditlog " + where

	var total int
	if err := recorder.pool.QueryRow(context, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_audit_entries")
	}

	// Page query, newest first. UUIDv7 ids are time-sortable, so the id is a
	// stable tiebreaker for rows created within the same microsecond.
	pageQuery := fmt.Sprintf(`
		SELECT id, userid, eventtype, ipaddress, useragent, metadata, createdat
		FROM system.auditlog
		%s
		ORDER BY createdat DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	args = append(args, params.Limit, params.Offset())

	rows, err := recorder.pool.Query(context, pageQuery, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_audit_entries")
	}
	defer rows.Close()

	entries := make([]Entry, 0, params.Limit)
	for rows.Next() {
		var entry Entry
		var eventType string
		var metadata []byte

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&eventType,
			&entry.IPAddress,
			&entry.UserAgent,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_audit_entry")
		}

		entry.EventType = EventType(eventType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, 0, fmt.Errorf("audit_store_metadata_unmarshal_failed: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "iterate_audit_entries")
	}

	return entries, total, nil
}

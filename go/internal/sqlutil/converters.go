package sqlutil

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go types and nullable column types

// ToNullUUID converts a Go UUID pointer to uuid.NullUUID
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// FromNullUUID converts uuid.NullUUID to Go UUID pointer
func FromNullUUID(val uuid.NullUUID) *uuid.UUID {
	if !val.Valid {
		return nil
	}
	id := val.UUID
	return &id
}

// ToSqlTime converts a Go time pointer to sql.NullTime
func ToSqlTime(val *time.Time) sql.NullTime {
	if val == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *val, Valid: true}
}

// FromSqlTime converts sql.NullTime to a UTC Go time pointer
func FromSqlTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

// ToNullRawMessage converts optional JSON to pqtype.NullRawMessage
func ToNullRawMessage(raw json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: raw, Valid: len(raw) > 0}
}

// FromNullRawMessage converts pqtype.NullRawMessage to optional JSON
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}

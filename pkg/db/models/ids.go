package models

import "github.com/google/uuid"

// ensureID assigns a fresh identifier when the caller did not supply one.
// Postgres defaults cover raw inserts; this keeps GORM inserts portable.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

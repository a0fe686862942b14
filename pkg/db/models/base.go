package models

import "github.com/google/uuid"

// ensureID fills a zero primary key before insert so rows created outside
// postgres (tests, sqlite) still receive a uuid.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

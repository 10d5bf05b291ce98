package idgen

import "github.com/google/uuid"

// RecordID returns a time-ordered unique ID for a dispatch record.
// UUIDv7 keeps journal entries roughly sortable by creation time.
func RecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EvaluationID identifies one batch evaluation run (UUIDv7).
// String alias keeps JSON serialization plain.
type EvaluationID string

// NewEvaluationID generates a UUIDv7 evaluation identifier.
// Time-ordered IDs keep the evaluations table clustered by insertion time.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEvaluationID() EvaluationID {
	return EvaluationID(uuid.Must(uuid.NewV7()).String())
}

// ParseEvaluationID validates and converts a string to EvaluationID.
func ParseEvaluationID(s string) (EvaluationID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return EvaluationID(s), nil
}

// EvaluationIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EvaluationIDTime(id EvaluationID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// FormatFindingID renders a finding counter value as a stable display ID.
func FormatFindingID(n int64) string {
	return fmt.Sprintf("F-%04d", n)
}

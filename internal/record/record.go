package record

import (
	"fmt"

	"github.com/google/uuid"
)

const IDField = "id"

// Record is the persisted entity: upstream fields copied verbatim plus a
// generated id.
type Record map[string]any

func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	return id.String(), nil
}

// Merge copies every fetched field and then sets the id, so a fetched id is
// always replaced. The fetched map is left untouched.
func Merge(fetched map[string]any, id string) Record {
	merged := make(Record, len(fetched)+1)
	for key, value := range fetched {
		merged[key] = value
	}
	merged[IDField] = id
	return merged
}

func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

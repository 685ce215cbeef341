package db

import "github.com/google/uuid"

// NewUUID mints a v4 identifier for new rows.
func NewUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

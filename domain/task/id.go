package task

import "github.com/google/uuid"

// NewID returns a fresh task id.
func NewID() string {
	return uuid.New().String()
}

// ParseID checks that id is a canonical UUID and returns its lower-case form.
// Braced and urn-prefixed forms are rejected.
func ParseID(id string) (string, error) {
	if len(id) != 36 {
		return "", ErrInvalidID
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return u.String(), nil
}

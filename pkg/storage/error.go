package storage

// NotFoundError is returned when a turn record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "turn not found"
	}

	return "turn not found: " + e.ID
}

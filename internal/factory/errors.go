package factory

import "fmt"

// NoSecretaryAssigned indicates a user has no active secretary
// assignment on record (spec §4.4): the REST Data Plane answered the
// lookup without error but returned no assistant to route to.
type NoSecretaryAssigned struct {
	UserID int64
}

func (e *NoSecretaryAssigned) Error() string {
	return fmt.Sprintf("user %d has no secretary assigned", e.UserID)
}

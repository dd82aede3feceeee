package schedule

import "errors"

var (
	// ErrNoTickSource is returned by New when the host can neither request
	// frames nor run intervals.
	ErrNoTickSource = errors.New("schedule: host provides no tick source")

	// ErrInvalidRate is returned for a non-positive display rate.
	ErrInvalidRate = errors.New("schedule: display rate must be positive")
)

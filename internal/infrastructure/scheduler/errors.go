package scheduler

import "errors"

var (
	// ErrJobNotFound is returned when triggering an unregistered job
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when a run of the job is active here or on another instance
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrInvalidConfig is returned when a job definition is unusable
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

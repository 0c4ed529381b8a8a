package classifier

import "errors"

var (
	// ErrUnavailable covers every failed call: transport errors, timeouts,
	// non-2xx statuses and undecodable bodies.
	ErrUnavailable     = errors.New("classification service unavailable")
	ErrEmptySubmission = errors.New("submission needs text or an image")
)

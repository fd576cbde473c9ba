// Package speech holds the contract types shared by speech input and output
// implementations.
package speech

import "errors"

// ErrTimeout is returned by Listen when no utterance was transcribed within
// the allotted window. It is an expected outcome, not a failure of the
// underlying client.
var ErrTimeout = errors.New("no speech received before timeout")

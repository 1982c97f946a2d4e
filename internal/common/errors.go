package common

import "errors"

// ErrConfiguration marks a missing or invalid required input. It is surfaced
// to the caller immediately and never retried.
var ErrConfiguration = errors.New("configuration error")

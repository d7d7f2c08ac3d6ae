package models

import "errors"

// ErrNotFound is returned by record lookups for unknown ids.
var ErrNotFound = errors.New("record not found")

package store

import "errors"

var (
    ErrNotFound    = errors.New("not found")
    ErrEmailExists = errors.New("email exists")
)

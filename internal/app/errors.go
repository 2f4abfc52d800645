package app

import "errors"

// Client errors. Callers map these to 4xx responses.
var (
    ErrInvalidInput    = errors.New("invalid input")
    ErrUnknownScanner  = errors.New("unknown scanner")
    ErrUnknownBarcode  = errors.New("unknown barcode")
    ErrUnknownDonor    = errors.New("unknown donor")
    ErrUnauthenticated = errors.New("invalid credentials")
    ErrEmailTaken      = errors.New("email already registered")
    ErrReturnNotFound  = errors.New("return not found")
)

// ErrStoreFailure marks a valid request the system failed to process.
// It is always wrapped together with the underlying cause.
var ErrStoreFailure = errors.New("store failure")

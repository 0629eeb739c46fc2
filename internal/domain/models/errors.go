package models

import "errors"

// ErrDataUnavailable means the provider could not supply any chain data at
// all. Distinct from a valid empty chain, which is success with empty lists.
var ErrDataUnavailable = errors.New("market data unavailable")

// ErrInvalidInput means the symbol or expiration was rejected before any
// fetch was attempted.
var ErrInvalidInput = errors.New("invalid input")

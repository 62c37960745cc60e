package store

import (
	"github.com/xtxerr/soilwatch/internal/errors"
)

var (
	ErrNotFound     = errors.ErrNotFound
	ErrDuplicateKey = errors.ErrDuplicateKey
	ErrStoreClosed  = errors.ErrStoreClosed
	ErrDatabase     = errors.ErrDatabase

	ErrUnknownDriver = errors.ErrUnknownDriver
)

package repo

import "errors"

var (
	ErrNotFound     = errors.New("bet not found")
	ErrNotPending   = errors.New("bet is not pending")
	ErrDuplicateBet = errors.New("bet already exists")
)

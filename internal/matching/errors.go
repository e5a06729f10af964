package matching

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyActiveElsewhere  = errors.New("already active in another arena")
	ErrNotActive               = errors.New("not active in this arena")
	ErrOutOfSignals            = errors.New("out of signals")
	ErrSenderOrReceiverMissing = errors.New("sender or receiver missing")
	ErrArenaClosed             = errors.New("arena is closed")
	ErrOutsideArena            = errors.New("outside arena")
	ErrBlocked                 = errors.New("users have blocked each other")
	ErrSelfSignal              = errors.New("cannot signal yourself")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user already exists")
	ErrInvalidUser             = errors.New("invalid user")
)

// OutsideArenaError carries how far the user was from the arena centre.
type OutsideArenaError struct {
	Distance float64
	Radius   float64
}

func (e *OutsideArenaError) Error() string {
	return fmt.Sprintf("outside arena: %.0fm from centre, radius %.0fm", e.Distance, e.Radius)
}

func (e *OutsideArenaError) Is(target error) bool { return target == ErrOutsideArena }

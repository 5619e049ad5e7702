package lock

import "errors"

// ErrLockTimeout is returned when a profile lock cannot be acquired in time.
var ErrLockTimeout = errors.New("profile lock acquisition timeout")

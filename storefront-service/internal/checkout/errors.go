package checkout

import "errors"

var (
	ErrEmailRequired = errors.New("email is required to pay")
	ErrNotRunning    = errors.New("checkout is not awaiting payment")
)

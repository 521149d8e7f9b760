package bootstrap

import "errors"

// ErrRunFailed indicates a bootstrap run ended in the failed status.
var ErrRunFailed = errors.New("bootstrap run failed")

// ErrClaimWaitExceeded indicates another process held the bootstrap
// claim for longer than the configured wait budget.
var ErrClaimWaitExceeded = errors.New("bootstrap claim wait exceeded")

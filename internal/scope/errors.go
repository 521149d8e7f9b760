package scope

import "errors"

// ErrNoActiveScope indicates a persistence call ran without a bound execution scope.
var ErrNoActiveScope = errors.New("no active execution scope")

// ErrScopeLost indicates the bound scope was lost and could not be restored
// within the single permitted recovery attempt.
var ErrScopeLost = errors.New("execution scope lost")

// ErrRecoveryFailed indicates recreating a lost scope did not yield a valid one.
var ErrRecoveryFailed = errors.New("scope recovery failed")

package seed

import "errors"

// ErrSeeding indicates a seeding pass did not commit.
var ErrSeeding = errors.New("seeding failed")

// ErrAdminCreation indicates the administrator account could not be
// created, which no bootstrap run can tolerate.
var ErrAdminCreation = errors.New("administrator account creation failed")

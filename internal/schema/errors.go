package schema

import "errors"

// ErrRequiredTableCreation indicates a required table could not be created.
var ErrRequiredTableCreation = errors.New("required table creation failed")

// ErrManualRepairRequired indicates a defect that only a destructive
// operation could fix, which is never attempted automatically.
var ErrManualRepairRequired = errors.New("schema repair requires manual action")

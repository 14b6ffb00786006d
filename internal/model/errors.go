package model

import "errors"

// Constraint failures reported by mutators. All are recoverable by the
// caller; a failed mutator leaves the graph unchanged.
var (
	ErrCapacityExceeded    = errors.New("size exceeds free capacity")
	ErrDeviceConsumed      = errors.New("device is already in use")
	ErrActionNotApplicable = errors.New("action not applicable to device type")
	ErrActionNotPossible   = errors.New("action not currently possible")
	ErrLastMember          = errors.New("cannot remove the last member")
	ErrNotMember           = errors.New("device is not a member")
	ErrAlreadyMounted      = errors.New("filesystem already has a mount")
	ErrUnknownFlag         = errors.New("unknown partition flag")
	ErrUnknownRaidLevel    = errors.New("unknown raid level")
	ErrTooFewDevices       = errors.New("not enough devices for raid level")
	ErrBadFstype           = errors.New("fstype cannot be empty")
	ErrEmptyKey            = errors.New("passphrase cannot be empty")
)

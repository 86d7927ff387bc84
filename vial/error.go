package vial

// Status is the one-byte result code this service writes back in
// place of a successful reply's payload when a command fails. Vial
// has no structured error envelope like the teacher's apitypes.ApiError
// JSON body; a failed command simply writes a single status byte.
type Status byte

const (
	StatusOK          Status = 0x00
	StatusUnknown     Status = 0x01
	StatusBadRequest  Status = 0x02
	StatusUnauthorized Status = 0x03
	StatusNotFound    Status = 0x04
	StatusInternal    Status = 0xFF
)

// CommandError is the error type every handler in this package
// returns, mirroring the teacher's per-status-code apierror
// constructors but carrying a single Vial status byte instead of an
// HTTP status.
type CommandError struct {
	Status Status
	Detail string
}

func (e *CommandError) Error() string { return e.Detail }

// ErrUnknownCommand reports an opcode this service doesn't implement.
func ErrUnknownCommand(detail string) *CommandError {
	return &CommandError{Status: StatusUnknown, Detail: detail}
}

// ErrBadRequest reports a malformed or out-of-range payload.
func ErrBadRequest(detail string) *CommandError {
	return &CommandError{Status: StatusBadRequest, Detail: detail}
}

// ErrUnauthorized reports a mutating command attempted before unlock.
func ErrUnauthorized(detail string) *CommandError {
	return &CommandError{Status: StatusUnauthorized, Detail: detail}
}

// ErrNotFound reports an index (layer, combo, tap-dance, fork slot)
// outside the configured table.
func ErrNotFound(detail string) *CommandError {
	return &CommandError{Status: StatusNotFound, Detail: detail}
}

// ErrInternal reports a storage or encoding failure.
func ErrInternal(detail string) *CommandError {
	return &CommandError{Status: StatusInternal, Detail: detail}
}

// WrapError normalizes any error into a *CommandError, defaulting to
// StatusInternal the way the teacher's WrapError defaults to 500.
func WrapError(err error) *CommandError {
	if ce, ok := err.(*CommandError); ok {
		return ce
	}
	return ErrInternal(err.Error())
}

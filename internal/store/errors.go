package store

import "errors"

// These sentinel errors double as the wire-level error messages: the
// dispatcher sends err.Error() back to the client verbatim as a short,
// fixed string.
var (
	ErrFacilityNotFound = errors.New("Facility not found")
	ErrBookingNotFound  = errors.New("Booking not found")
	ErrSlotUnavailable  = errors.New("Time slot not available")
	ErrChangeConflict   = errors.New("Cannot change booking")
	ErrExtendConflict   = errors.New("Cannot extend booking")
	ErrInvalidInterval  = errors.New("End time must be after start time")
)

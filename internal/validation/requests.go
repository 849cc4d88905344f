// Package validation applies struct-tag validation to decoded request
// payloads before they reach the booking store, rejecting malformed
// field combinations the wire codec itself cannot catch (empty names,
// oversized day lists, non-positive durations).
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"facilityd/internal/protocol"
)

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// FieldErrors collects one or more FieldError values.
type FieldErrors []FieldError

func (es FieldErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator wraps a validator.Validate configured with the tags this
// package's request structs use.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{validate: validator.New()}
}

type queryAvailability struct {
	FacilityName string   `validate:"required"`
	Days         []uint32 `validate:"required,max=31,dive,lte=365"`
}

type bookFacility struct {
	FacilityName string `validate:"required"`
	Start        uint32 `validate:"required"`
	End          uint32 `validate:"required,gtfield=Start"`
}

type changeBooking struct {
	BookingID uint32 `validate:"required"`
}

type monitorFacility struct {
	FacilityName    string `validate:"required"`
	DurationSeconds uint32 `validate:"required,gte=1,lte=604800"`
}

type getLastBookingTime struct {
	FacilityName string `validate:"required"`
}

type extendBooking struct {
	BookingID uint32 `validate:"required"`
	Minutes   uint32 `validate:"lte=10080"`
}

// QueryAvailability validates a decoded QueryAvailabilityRequest.
func (v *Validator) QueryAvailability(req protocol.QueryAvailabilityRequest) error {
	return v.run(queryAvailability{FacilityName: req.FacilityName, Days: req.Days})
}

// BookFacility validates a decoded BookFacilityRequest.
func (v *Validator) BookFacility(req protocol.BookFacilityRequest) error {
	return v.run(bookFacility{FacilityName: req.FacilityName, Start: req.Start, End: req.End})
}

// ChangeBooking validates a decoded ChangeBookingRequest.
func (v *Validator) ChangeBooking(req protocol.ChangeBookingRequest) error {
	return v.run(changeBooking{BookingID: req.BookingID})
}

// MonitorFacility validates a decoded MonitorFacilityRequest.
func (v *Validator) MonitorFacility(req protocol.MonitorFacilityRequest) error {
	return v.run(monitorFacility{FacilityName: req.FacilityName, DurationSeconds: req.DurationSeconds})
}

// GetLastBookingTime validates a decoded GetLastBookingTimeRequest.
func (v *Validator) GetLastBookingTime(req protocol.GetLastBookingTimeRequest) error {
	return v.run(getLastBookingTime{FacilityName: req.FacilityName})
}

// ExtendBooking validates a decoded ExtendBookingRequest.
func (v *Validator) ExtendBooking(req protocol.ExtendBookingRequest) error {
	return v.run(extendBooking{BookingID: req.BookingID, Minutes: req.Minutes})
}

func (v *Validator) run(target any) error {
	if err := v.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := make(FieldErrors, 0, len(verrs))
			for _, fe := range verrs {
				out = append(out, FieldError{Field: fe.Field(), Message: translate(fe)})
			}
			return out
		}
		return err
	}
	return nil
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s elements", fe.Param())
	default:
		return fe.Error()
	}
}

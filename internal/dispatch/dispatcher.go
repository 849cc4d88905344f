// Package dispatch decodes request envelopes, routes them to the
// booking store and monitor registry, and assembles response envelopes.
// It is the only package that knows how wire message types map onto
// store operations.
package dispatch

import (
	"net"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"facilityd/internal/monitor"
	"facilityd/internal/protocol"
	"facilityd/internal/store"
	"facilityd/internal/validation"
)

// Recorder receives per-request counts. The dispatcher works fine with
// a nil Recorder; telemetry.Metrics satisfies this interface.
type Recorder interface {
	ObserveRequest(messageType uint8)
	ObserveResponseError(messageType uint8)
}

// Dispatcher ties the wire protocol to the booking store and monitor
// registry. It holds no network state of its own; the transport layer
// owns the socket and calls Handle for every decoded datagram.
type Dispatcher struct {
	store    *store.Store
	monitors *monitor.Registry
	validate *validation.Validator
	send     monitor.Sender
	log      pslog.Logger
	metrics  Recorder
}

// New constructs a Dispatcher. send is used only to push monitor
// notifications; replies are returned by Handle and written by the
// caller.
func New(st *store.Store, monitors *monitor.Registry, send monitor.Sender, log pslog.Logger) *Dispatcher {
	return &Dispatcher{store: st, monitors: monitors, validate: validation.New(), send: send, log: log}
}

// WithMetrics attaches a Recorder that Handle reports per-request
// counts to.
func (d *Dispatcher) WithMetrics(m Recorder) *Dispatcher {
	d.metrics = m
	return d
}

// Handle decodes a single request datagram and returns the fully
// encoded response datagram to send back. It never returns a non-nil
// error for a malformed or rejected *request* — those become an ERROR
// response instead — only for failures assembling the reply itself.
func (d *Dispatcher) Handle(data []byte, from *net.UDPAddr) ([]byte, error) {
	traceID := uuid.NewString()

	req, err := protocol.DecodeRequest(data)
	if err != nil {
		if d.log != nil {
			d.log.Warn("dispatch.malformed_envelope", "trace_id", traceID, "from", from.String())
		}
		return protocol.EncodeErrorResponse(0, "Malformed request")
	}

	if d.log != nil {
		d.log.Debug("dispatch.request",
			"trace_id", traceID,
			"request_id", req.RequestID,
			"message_type", req.MessageType,
			"from", from.String(),
		)
	}
	if d.metrics != nil {
		d.metrics.ObserveRequest(req.MessageType)
	}

	var resp []byte
	switch req.MessageType {
	case protocol.MsgQueryAvailability:
		resp, err = d.handleQueryAvailability(req)
	case protocol.MsgBookFacility:
		resp, err = d.handleBookFacility(req, from)
	case protocol.MsgChangeBooking:
		resp, err = d.handleChangeBooking(req, from)
	case protocol.MsgMonitorFacility:
		resp, err = d.handleMonitorFacility(req, from)
	case protocol.MsgGetLastBookingTime:
		resp, err = d.handleGetLastBookingTime(req)
	case protocol.MsgExtendBooking:
		resp, err = d.handleExtendBooking(req, from)
	default:
		resp, err = protocol.EncodeErrorResponse(req.RequestID, "Unknown message type")
	}

	if err == nil && d.metrics != nil && isErrorResponse(resp) {
		d.metrics.ObserveResponseError(req.MessageType)
	}
	return resp, err
}

func isErrorResponse(resp []byte) bool {
	decoded, err := protocol.DecodeResponse(resp)
	return err == nil && decoded.Status == protocol.StatusError
}

func (d *Dispatcher) handleQueryAvailability(req protocol.Request) ([]byte, error) {
	payload, err := protocol.DecodeQueryAvailabilityRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.QueryAvailability(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	slots, err := d.store.QuerySlots(payload.FacilityName, payload.Days)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	wireSlots := make([]protocol.TimeSlot, len(slots))
	for i, s := range slots {
		wireSlots[i] = protocol.TimeSlot{Start: s.Start, End: s.End}
	}

	body, err := protocol.EncodeQueryAvailabilityResponse(protocol.QueryAvailabilityResponse{Slots: wireSlots})
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) handleBookFacility(req protocol.Request, from *net.UDPAddr) ([]byte, error) {
	payload, err := protocol.DecodeBookFacilityRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.BookFacility(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	id, change, err := d.store.CreateBooking(payload.FacilityName, payload.Start, payload.End)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	d.notify(change)

	body, err := protocol.EncodeBookFacilityResponse(protocol.BookFacilityResponse{BookingID: id})
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) handleChangeBooking(req protocol.Request, from *net.UDPAddr) ([]byte, error) {
	payload, err := protocol.DecodeChangeBookingRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.ChangeBooking(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	change, err := d.store.ChangeBooking(payload.BookingID, payload.OffsetMinutes)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	d.notify(change)

	body, err := protocol.EncodeMessageBody("Booking updated successfully")
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) handleMonitorFacility(req protocol.Request, from *net.UDPAddr) ([]byte, error) {
	payload, err := protocol.DecodeMonitorFacilityRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.MonitorFacility(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	if _, err := d.store.LastBookingEnd(payload.FacilityName); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	d.monitors.Register(payload.FacilityName, from, time.Duration(payload.DurationSeconds)*time.Second)

	body, err := protocol.EncodeMessageBody("Monitoring registered successfully")
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) handleGetLastBookingTime(req protocol.Request) ([]byte, error) {
	payload, err := protocol.DecodeGetLastBookingTimeRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.GetLastBookingTime(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	last, err := d.store.LastBookingEnd(payload.FacilityName)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	message := "Last booking end time retrieved"
	if last == 0 {
		message = "No bookings found"
	}

	body, err := protocol.EncodeGetLastBookingTimeResponse(protocol.GetLastBookingTimeResponse{
		LastEnd: last,
		Message: message,
	})
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) handleExtendBooking(req protocol.Request, from *net.UDPAddr) ([]byte, error) {
	payload, err := protocol.DecodeExtendBookingRequest(req.Payload)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, "Malformed request")
	}
	if err := d.validate.ExtendBooking(payload); err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	change, err := d.store.ExtendBooking(payload.BookingID, payload.Minutes)
	if err != nil {
		return protocol.EncodeErrorResponse(req.RequestID, err.Error())
	}

	d.notify(change)

	body, err := protocol.EncodeExtendBookingResponse(protocol.ExtendBookingResponse{
		NewEnd:  change.NewEnd,
		Message: "Booking extended successfully",
	})
	if err != nil {
		return nil, err
	}
	return protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
}

func (d *Dispatcher) notify(change store.Change) {
	if err := d.monitors.Notify(d.store, change, d.send); err != nil && d.log != nil {
		d.log.Error("notify monitors failed", "facility", change.FacilityName, "err", err)
	}
}

package protocol

import "fmt"

// Request is a decoded request envelope: request_id, message_type and the
// still-undecoded payload bytes. Handlers decode the payload for their
// own message type.
type Request struct {
	RequestID   uint32
	MessageType uint8
	Payload     []byte
}

// EncodeRequest assembles the wire form of a request envelope around an
// already-encoded payload.
func EncodeRequest(requestID uint32, messageType uint8, payload []byte) ([]byte, error) {
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("protocol: payload too large (%d bytes)", len(payload))
	}
	w := NewWriter()
	w.WriteUint32(requestID)
	w.WriteUint8(messageType)
	w.WriteUint16(uint16(len(payload)))
	w.WriteBytes(payload)
	if len(w.Bytes()) > MaxDatagramSize {
		return nil, fmt.Errorf("protocol: request exceeds datagram ceiling (%d bytes)", len(w.Bytes()))
	}
	return w.Bytes(), nil
}

// DecodeRequest parses the envelope header and slices out the payload.
func DecodeRequest(data []byte) (Request, error) {
	r := NewReader(data)
	requestID, err := r.ReadUint32()
	if err != nil {
		return Request{}, err
	}
	messageType, err := r.ReadUint8()
	if err != nil {
		return Request{}, err
	}
	payloadLen, err := r.ReadUint16()
	if err != nil {
		return Request{}, err
	}
	payload, err := r.ReadBytes(int(payloadLen))
	if err != nil {
		return Request{}, err
	}
	return Request{RequestID: requestID, MessageType: messageType, Payload: payload}, nil
}

// Response is a decoded response envelope.
type Response struct {
	RequestID uint32
	Status    uint8
	Body      []byte
}

// EncodeResponse assembles a response envelope around an already-encoded
// body.
func EncodeResponse(requestID uint32, status uint8, body []byte) ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(requestID)
	w.WriteUint8(status)
	w.WriteBytes(body)
	if len(w.Bytes()) > MaxDatagramSize {
		return nil, fmt.Errorf("protocol: response exceeds datagram ceiling (%d bytes)", len(w.Bytes()))
	}
	return w.Bytes(), nil
}

// EncodeErrorResponse builds a response whose body is just a message
// string, used for every ERROR reply.
func EncodeErrorResponse(requestID uint32, message string) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(message); err != nil {
		return nil, err
	}
	return EncodeResponse(requestID, StatusError, w.Bytes())
}

// DecodeResponse parses a response envelope, leaving Body undecoded.
func DecodeResponse(data []byte) (Response, error) {
	r := NewReader(data)
	requestID, err := r.ReadUint32()
	if err != nil {
		return Response{}, err
	}
	status, err := r.ReadUint8()
	if err != nil {
		return Response{}, err
	}
	body, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return Response{}, err
	}
	return Response{RequestID: requestID, Status: status, Body: body}, nil
}

// --- payload codecs, one pair per message type ---

func EncodeQueryAvailabilityRequest(req QueryAvailabilityRequest) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(req.FacilityName); err != nil {
		return nil, err
	}
	if len(req.Days) > 0xFFFF {
		return nil, fmt.Errorf("protocol: too many days (%d)", len(req.Days))
	}
	w.WriteUint16(uint16(len(req.Days)))
	for _, d := range req.Days {
		w.WriteUint32(d)
	}
	return w.Bytes(), nil
}

func DecodeQueryAvailabilityRequest(payload []byte) (QueryAvailabilityRequest, error) {
	r := NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return QueryAvailabilityRequest{}, err
	}
	count, err := r.ReadUint16()
	if err != nil {
		return QueryAvailabilityRequest{}, err
	}
	days := make([]uint32, 0, count)
	for i := uint16(0); i < count; i++ {
		d, err := r.ReadUint32()
		if err != nil {
			return QueryAvailabilityRequest{}, err
		}
		days = append(days, d)
	}
	return QueryAvailabilityRequest{FacilityName: name, Days: days}, nil
}

func EncodeQueryAvailabilityResponse(resp QueryAvailabilityResponse) ([]byte, error) {
	w := NewWriter()
	if len(resp.Slots) > 0xFFFF {
		return nil, fmt.Errorf("protocol: too many slots (%d)", len(resp.Slots))
	}
	w.WriteUint16(uint16(len(resp.Slots)))
	for _, s := range resp.Slots {
		w.WriteTime(s.Start)
		w.WriteTime(s.End)
	}
	return w.Bytes(), nil
}

func DecodeQueryAvailabilityResponse(body []byte) (QueryAvailabilityResponse, error) {
	r := NewReader(body)
	count, err := r.ReadUint16()
	if err != nil {
		return QueryAvailabilityResponse{}, err
	}
	slots := make([]TimeSlot, 0, count)
	for i := uint16(0); i < count; i++ {
		start, err := r.ReadTime()
		if err != nil {
			return QueryAvailabilityResponse{}, err
		}
		end, err := r.ReadTime()
		if err != nil {
			return QueryAvailabilityResponse{}, err
		}
		slots = append(slots, TimeSlot{Start: start, End: end})
	}
	return QueryAvailabilityResponse{Slots: slots}, nil
}

func EncodeBookFacilityRequest(req BookFacilityRequest) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(req.FacilityName); err != nil {
		return nil, err
	}
	w.WriteTime(req.Start)
	w.WriteTime(req.End)
	return w.Bytes(), nil
}

func DecodeBookFacilityRequest(payload []byte) (BookFacilityRequest, error) {
	r := NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return BookFacilityRequest{}, err
	}
	start, err := r.ReadTime()
	if err != nil {
		return BookFacilityRequest{}, err
	}
	end, err := r.ReadTime()
	if err != nil {
		return BookFacilityRequest{}, err
	}
	return BookFacilityRequest{FacilityName: name, Start: start, End: end}, nil
}

func EncodeBookFacilityResponse(resp BookFacilityResponse) ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(resp.BookingID)
	return w.Bytes(), nil
}

func DecodeBookFacilityResponse(body []byte) (BookFacilityResponse, error) {
	r := NewReader(body)
	id, err := r.ReadUint32()
	if err != nil {
		return BookFacilityResponse{}, err
	}
	return BookFacilityResponse{BookingID: id}, nil
}

func EncodeChangeBookingRequest(req ChangeBookingRequest) ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(req.BookingID)
	w.WriteInt32(req.OffsetMinutes)
	return w.Bytes(), nil
}

func DecodeChangeBookingRequest(payload []byte) (ChangeBookingRequest, error) {
	r := NewReader(payload)
	id, err := r.ReadUint32()
	if err != nil {
		return ChangeBookingRequest{}, err
	}
	offset, err := r.ReadInt32()
	if err != nil {
		return ChangeBookingRequest{}, err
	}
	return ChangeBookingRequest{BookingID: id, OffsetMinutes: offset}, nil
}

func EncodeMessageBody(message string) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(message); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeMessageBody(body []byte) (string, error) {
	r := NewReader(body)
	return r.ReadString()
}

func EncodeMonitorFacilityRequest(req MonitorFacilityRequest) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(req.FacilityName); err != nil {
		return nil, err
	}
	w.WriteUint32(req.DurationSeconds)
	return w.Bytes(), nil
}

func DecodeMonitorFacilityRequest(payload []byte) (MonitorFacilityRequest, error) {
	r := NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return MonitorFacilityRequest{}, err
	}
	duration, err := r.ReadUint32()
	if err != nil {
		return MonitorFacilityRequest{}, err
	}
	return MonitorFacilityRequest{FacilityName: name, DurationSeconds: duration}, nil
}

func EncodeGetLastBookingTimeRequest(req GetLastBookingTimeRequest) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(req.FacilityName); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeGetLastBookingTimeRequest(payload []byte) (GetLastBookingTimeRequest, error) {
	r := NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return GetLastBookingTimeRequest{}, err
	}
	return GetLastBookingTimeRequest{FacilityName: name}, nil
}

func EncodeGetLastBookingTimeResponse(resp GetLastBookingTimeResponse) ([]byte, error) {
	w := NewWriter()
	w.WriteTime(resp.LastEnd)
	if err := w.WriteString(resp.Message); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeGetLastBookingTimeResponse(body []byte) (GetLastBookingTimeResponse, error) {
	r := NewReader(body)
	last, err := r.ReadTime()
	if err != nil {
		return GetLastBookingTimeResponse{}, err
	}
	msg, err := r.ReadString()
	if err != nil {
		return GetLastBookingTimeResponse{}, err
	}
	return GetLastBookingTimeResponse{LastEnd: last, Message: msg}, nil
}

func EncodeExtendBookingRequest(req ExtendBookingRequest) ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(req.BookingID)
	w.WriteUint32(req.Minutes)
	return w.Bytes(), nil
}

func DecodeExtendBookingRequest(payload []byte) (ExtendBookingRequest, error) {
	r := NewReader(payload)
	id, err := r.ReadUint32()
	if err != nil {
		return ExtendBookingRequest{}, err
	}
	minutes, err := r.ReadUint32()
	if err != nil {
		return ExtendBookingRequest{}, err
	}
	return ExtendBookingRequest{BookingID: id, Minutes: minutes}, nil
}

func EncodeExtendBookingResponse(resp ExtendBookingResponse) ([]byte, error) {
	w := NewWriter()
	w.WriteTime(resp.NewEnd)
	if err := w.WriteString(resp.Message); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func DecodeExtendBookingResponse(body []byte) (ExtendBookingResponse, error) {
	r := NewReader(body)
	newEnd, err := r.ReadTime()
	if err != nil {
		return ExtendBookingResponse{}, err
	}
	msg, err := r.ReadString()
	if err != nil {
		return ExtendBookingResponse{}, err
	}
	return ExtendBookingResponse{NewEnd: newEnd, Message: msg}, nil
}

// EncodeNotification builds the server-initiated, request_id=0 payload
// pushed to monitor subscribers. old_start/old_end are only meaningful
// for change and extend operations and are omitted from the wire form
// for a fresh booking.
func EncodeNotification(n Notification) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(n.Message); err != nil {
		return nil, err
	}
	w.WriteUint8(n.Operation)
	w.WriteUint32(n.BookingID)
	w.WriteTime(n.NewStart)
	w.WriteTime(n.NewEnd)
	if n.Operation == OpChange || n.Operation == OpExtend {
		w.WriteTime(n.OldStart)
		w.WriteTime(n.OldEnd)
	}
	if len(n.Slots) > 0xFFFF {
		return nil, fmt.Errorf("protocol: too many slots (%d)", len(n.Slots))
	}
	w.WriteUint16(uint16(len(n.Slots)))
	for _, s := range n.Slots {
		w.WriteTime(s.Start)
		w.WriteTime(s.End)
	}
	full, err := EncodeResponse(0, StatusSuccess, w.Bytes())
	if err != nil {
		return nil, err
	}
	return full, nil
}

// DecodeNotification parses a notification body (the Response.Body slice
// after DecodeResponse has stripped the envelope).
func DecodeNotification(body []byte) (Notification, error) {
	r := NewReader(body)
	msg, err := r.ReadString()
	if err != nil {
		return Notification{}, err
	}
	op, err := r.ReadUint8()
	if err != nil {
		return Notification{}, err
	}
	bookingID, err := r.ReadUint32()
	if err != nil {
		return Notification{}, err
	}
	newStart, err := r.ReadTime()
	if err != nil {
		return Notification{}, err
	}
	newEnd, err := r.ReadTime()
	if err != nil {
		return Notification{}, err
	}
	n := Notification{Message: msg, Operation: op, BookingID: bookingID, NewStart: newStart, NewEnd: newEnd}
	if op == OpChange || op == OpExtend {
		oldStart, err := r.ReadTime()
		if err != nil {
			return Notification{}, err
		}
		oldEnd, err := r.ReadTime()
		if err != nil {
			return Notification{}, err
		}
		n.OldStart, n.OldEnd = oldStart, oldEnd
	}
	count, err := r.ReadUint16()
	if err != nil {
		return Notification{}, err
	}
	n.Slots = make([]TimeSlot, 0, count)
	for i := uint16(0); i < count; i++ {
		start, err := r.ReadTime()
		if err != nil {
			return Notification{}, err
		}
		end, err := r.ReadTime()
		if err != nil {
			return Notification{}, err
		}
		n.Slots = append(n.Slots, TimeSlot{Start: start, End: end})
	}
	return n, nil
}

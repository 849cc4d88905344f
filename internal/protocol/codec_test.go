package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(7)
	w.WriteUint16(1234)
	w.WriteUint32(987654321)
	w.WriteInt32(-42)
	require.NoError(t, w.WriteString("Lab_101"))

	r := NewReader(w.Bytes())
	u8, err := r.ReadUint8()
	require.NoError(t, err)
	require.EqualValues(t, 7, u8)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	require.EqualValues(t, 1234, u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	require.EqualValues(t, 987654321, u32)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	require.EqualValues(t, -42, i32)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "Lab_101", s)

	require.Zero(t, r.Remaining())
}

func TestReaderUnderflow(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadUint32()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestRequestEnvelopeRoundTrip(t *testing.T) {
	payload, err := EncodeBookFacilityRequest(BookFacilityRequest{
		FacilityName: "Lab_101",
		Start:        1000,
		End:          2000,
	})
	require.NoError(t, err)

	raw, err := EncodeRequest(42, MsgBookFacility, payload)
	require.NoError(t, err)

	req, err := DecodeRequest(raw)
	require.NoError(t, err)
	require.EqualValues(t, 42, req.RequestID)
	require.Equal(t, MsgBookFacility, req.MessageType)

	decoded, err := DecodeBookFacilityRequest(req.Payload)
	require.NoError(t, err)
	require.Equal(t, BookFacilityRequest{FacilityName: "Lab_101", Start: 1000, End: 2000}, decoded)
}

func TestResponseEnvelopeRoundTrip(t *testing.T) {
	body, err := EncodeBookFacilityResponse(BookFacilityResponse{BookingID: 5})
	require.NoError(t, err)

	raw, err := EncodeResponse(42, StatusSuccess, body)
	require.NoError(t, err)

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)
	require.EqualValues(t, 42, resp.RequestID)
	require.Equal(t, StatusSuccess, resp.Status)

	decoded, err := DecodeBookFacilityResponse(resp.Body)
	require.NoError(t, err)
	require.EqualValues(t, 5, decoded.BookingID)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	raw, err := EncodeErrorResponse(7, "Time slot not available")
	require.NoError(t, err)

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)
	require.Equal(t, StatusError, resp.Status)

	msg, err := DecodeMessageBody(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Time slot not available", msg)
}

func TestNotificationRoundTripBook(t *testing.T) {
	raw, err := EncodeNotification(Notification{
		Message:   "New booking created",
		Operation: OpBook,
		BookingID: 3,
		NewStart:  1000,
		NewEnd:    2000,
		Slots:     []TimeSlot{{Start: 1, End: 2}, {Start: 3, End: 4}},
	})
	require.NoError(t, err)

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)
	require.EqualValues(t, 0, resp.RequestID)
	require.Equal(t, StatusSuccess, resp.Status)

	n, err := DecodeNotification(resp.Body)
	require.NoError(t, err)
	require.Equal(t, OpBook, n.Operation)
	require.EqualValues(t, 3, n.BookingID)
	require.Len(t, n.Slots, 2)
	require.Zero(t, n.OldStart)
}

func TestNotificationRoundTripChangeCarriesOldTimes(t *testing.T) {
	raw, err := EncodeNotification(Notification{
		Message:   "Booking time changed",
		Operation: OpChange,
		BookingID: 9,
		NewStart:  5000,
		NewEnd:    6000,
		OldStart:  4000,
		OldEnd:    5000,
	})
	require.NoError(t, err)

	resp, err := DecodeResponse(raw)
	require.NoError(t, err)
	n, err := DecodeNotification(resp.Body)
	require.NoError(t, err)
	require.EqualValues(t, 4000, n.OldStart)
	require.EqualValues(t, 5000, n.OldEnd)
}

package dispatch

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facilityd/internal/monitor"
	"facilityd/internal/protocol"
	"facilityd/internal/store"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.Store) {
	t.Helper()
	st, err := store.New(store.DefaultConfig(time.UTC), nil)
	require.NoError(t, err)
	reg := monitor.New()
	noopSend := func(*net.UDPAddr, []byte) error { return nil }
	return New(st, reg, noopSend, nil), st
}

func clientAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5555}
}

func TestHandleBookFacilitySuccess(t *testing.T) {
	d, _ := newTestDispatcher(t)

	payload, err := protocol.EncodeBookFacilityRequest(protocol.BookFacilityRequest{
		FacilityName: "Lab_101", Start: 1000, End: 2000,
	})
	require.NoError(t, err)
	raw, err := protocol.EncodeRequest(1, protocol.MsgBookFacility, payload)
	require.NoError(t, err)

	respRaw, err := d.Handle(raw, clientAddr())
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(respRaw)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, resp.Status)

	body, err := protocol.DecodeBookFacilityResponse(resp.Body)
	require.NoError(t, err)
	require.EqualValues(t, 1, body.BookingID)
}

func TestHandleBookFacilityUnknownFacility(t *testing.T) {
	d, _ := newTestDispatcher(t)

	payload, err := protocol.EncodeBookFacilityRequest(protocol.BookFacilityRequest{
		FacilityName: "Nonexistent", Start: 1000, End: 2000,
	})
	require.NoError(t, err)
	raw, err := protocol.EncodeRequest(1, protocol.MsgBookFacility, payload)
	require.NoError(t, err)

	respRaw, err := d.Handle(raw, clientAddr())
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(respRaw)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusError, resp.Status)

	msg, err := protocol.DecodeMessageBody(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Facility not found", msg)
}

func TestHandleMonitorThenNotifyOnBooking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var captured []byte
	d.send = func(addr *net.UDPAddr, payload []byte) error {
		captured = payload
		return nil
	}

	monPayload, err := protocol.EncodeMonitorFacilityRequest(protocol.MonitorFacilityRequest{
		FacilityName: "Lab_101", DurationSeconds: 3600,
	})
	require.NoError(t, err)
	monRaw, err := protocol.EncodeRequest(1, protocol.MsgMonitorFacility, monPayload)
	require.NoError(t, err)

	_, err = d.Handle(monRaw, clientAddr())
	require.NoError(t, err)

	bookPayload, err := protocol.EncodeBookFacilityRequest(protocol.BookFacilityRequest{
		FacilityName: "Lab_101", Start: 1000, End: 2000,
	})
	require.NoError(t, err)
	bookRaw, err := protocol.EncodeRequest(2, protocol.MsgBookFacility, bookPayload)
	require.NoError(t, err)

	_, err = d.Handle(bookRaw, clientAddr())
	require.NoError(t, err)

	require.NotEmpty(t, captured)
	resp, err := protocol.DecodeResponse(captured)
	require.NoError(t, err)
	n, err := protocol.DecodeNotification(resp.Body)
	require.NoError(t, err)
	require.Equal(t, protocol.OpBook, n.Operation)
}

func TestHandleUnknownMessageType(t *testing.T) {
	d, _ := newTestDispatcher(t)

	raw, err := protocol.EncodeRequest(1, 99, nil)
	require.NoError(t, err)

	respRaw, err := d.Handle(raw, clientAddr())
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(respRaw)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusError, resp.Status)
}

func TestHandleExtendBookingSuccess(t *testing.T) {
	d, st := newTestDispatcher(t)

	id, _, err := st.CreateBooking("Lab_101", 1000, 2000)
	require.NoError(t, err)

	payload, err := protocol.EncodeExtendBookingRequest(protocol.ExtendBookingRequest{
		BookingID: id, Minutes: 30,
	})
	require.NoError(t, err)
	raw, err := protocol.EncodeRequest(1, protocol.MsgExtendBooking, payload)
	require.NoError(t, err)

	respRaw, err := d.Handle(raw, clientAddr())
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(respRaw)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, resp.Status)

	body, err := protocol.DecodeExtendBookingResponse(resp.Body)
	require.NoError(t, err)
	require.EqualValues(t, 3800, body.NewEnd)
}

package rpcclient

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facilityd/internal/protocol"
)

// echoServer replies to every request with a fixed success body, so the
// client transport can be tested without the full dispatcher.
func echoServer(t *testing.T) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req, err := protocol.DecodeRequest(buf[:n])
			if err != nil {
				continue
			}
			body, _ := protocol.EncodeMessageBody("ok")
			resp, _ := protocol.EncodeResponse(req.RequestID, protocol.StatusSuccess, body)
			conn.WriteToUDP(resp, from)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

func TestSendReceivesMatchingReply(t *testing.T) {
	addr := echoServer(t)

	c, err := New(addr.String(), time.Second, 3)
	require.NoError(t, err)
	defer c.Close()

	payload, err := protocol.EncodeGetLastBookingTimeRequest(protocol.GetLastBookingTimeRequest{FacilityName: "Lab_101"})
	require.NoError(t, err)

	resp, err := c.Send(protocol.MsgGetLastBookingTime, payload)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, resp.Status)

	msg, err := protocol.DecodeMessageBody(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", msg)
}

func TestSendTimesOutAgainstUnreachableServer(t *testing.T) {
	// Bind and immediately close so nothing answers.
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	addr := conn.LocalAddr().(*net.UDPAddr)
	conn.Close()

	c, err := New(addr.String(), 50*time.Millisecond, 2)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send(protocol.MsgGetLastBookingTime, nil)
	require.Error(t, err)
}

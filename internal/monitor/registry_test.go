package monitor

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"facilityd/internal/protocol"
	"facilityd/internal/store"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestRegisterRefreshesExistingEndpoint(t *testing.T) {
	r := New()
	r.Register("Lab_101", addr(9000), time.Minute)
	r.Register("Lab_101", addr(9000), 2*time.Hour)

	require.Len(t, r.monitors["Lab_101"], 1)
	require.True(t, r.monitors["Lab_101"][0].expiry.After(time.Now().Add(time.Minute)))
}

func TestRegisterDistinctEndpointsAppend(t *testing.T) {
	r := New()
	r.Register("Lab_101", addr(9000), time.Minute)
	r.Register("Lab_101", addr(9001), time.Minute)

	require.Len(t, r.monitors["Lab_101"], 2)
}

type recordingSender struct {
	mu  sync.Mutex
	got []struct {
		addr    *net.UDPAddr
		payload []byte
	}
}

func (s *recordingSender) send(a *net.UDPAddr, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, struct {
		addr    *net.UDPAddr
		payload []byte
	}{a, payload})
	return nil
}

func TestNotifySendsToLiveMonitorsAndSkipsExpired(t *testing.T) {
	r := New()
	r.Register("Lab_101", addr(9000), time.Hour)
	r.Register("Lab_101", addr(9001), -time.Second) // already expired

	st, err := store.New(store.DefaultConfig(time.UTC), nil)
	require.NoError(t, err)

	id, change, err := st.CreateBooking("Lab_101", 1000, 2000)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	rec := &recordingSender{}
	err = r.Notify(st, change, rec.send)
	require.NoError(t, err)

	require.Len(t, rec.got, 1)
	require.Equal(t, 9000, rec.got[0].addr.Port)

	resp, err := protocol.DecodeResponse(rec.got[0].payload)
	require.NoError(t, err)
	n, err := protocol.DecodeNotification(resp.Body)
	require.NoError(t, err)
	require.Equal(t, protocol.OpBook, n.Operation)
	require.EqualValues(t, 1, n.BookingID)

	// Expired subscriber should have been evicted.
	require.Len(t, r.monitors["Lab_101"], 1)
}

func TestNotifyNoSubscribersIsNoop(t *testing.T) {
	r := New()
	st, err := store.New(store.DefaultConfig(time.UTC), nil)
	require.NoError(t, err)

	_, change, err := st.CreateBooking("Lab_101", 1000, 2000)
	require.NoError(t, err)

	rec := &recordingSender{}
	require.NoError(t, r.Notify(st, change, rec.send))
	require.Empty(t, rec.got)
}

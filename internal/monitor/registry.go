// Package monitor tracks clients that asked to be notified of booking
// changes on a facility, and builds the notification payloads sent to
// them.
package monitor

import (
	"net"
	"sync"
	"time"

	"facilityd/internal/protocol"
	"facilityd/internal/store"
)

type subscriber struct {
	addr   *net.UDPAddr
	expiry time.Time
}

// Registry holds, per facility, the set of clients monitoring it. A
// single mutex guards the whole map; registration and notification are
// both infrequent relative to booking operations, so contention is not
// a concern.
type Registry struct {
	mu       sync.Mutex
	monitors map[string][]subscriber
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{monitors: make(map[string][]subscriber)}
}

// Register adds addr as a monitor of facilityName for duration. If addr
// is already monitoring that facility, its expiry is refreshed in place
// rather than adding a second entry.
func (r *Registry) Register(facilityName string, addr *net.UDPAddr, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry := time.Now().Add(duration)
	for i, sub := range r.monitors[facilityName] {
		if sub.addr.IP.Equal(addr.IP) && sub.addr.Port == addr.Port {
			r.monitors[facilityName][i].expiry = expiry
			return
		}
	}

	r.monitors[facilityName] = append(r.monitors[facilityName], subscriber{addr: addr, expiry: expiry})
}

// Sender delivers an already-encoded datagram to addr. Implemented by
// the UDP server's socket in production, and by a recording fake in
// tests.
type Sender func(addr *net.UDPAddr, payload []byte) error

// operationMessage mirrors the fixed strings the notification carries
// per operation kind.
func operationMessage(kind store.ChangeKind, facilityName string) (string, uint8) {
	switch kind {
	case store.ChangeModify:
		return "Booking time changed for " + facilityName, protocol.OpChange
	case store.ChangeExtend:
		return "Booking extended for " + facilityName, protocol.OpExtend
	default:
		return "New booking created for " + facilityName, protocol.OpBook
	}
}

// Notify builds a notification for change and sends it to every active
// monitor of change.FacilityName, evicting expired subscribers along the
// way. The notification includes the next 7 days of availability,
// queried from st after the mutation has already been committed.
func (r *Registry) Notify(st *store.Store, change store.Change, send Sender) error {
	r.mu.Lock()
	subs := r.evictAndSnapshotLocked(change.FacilityName)
	r.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}

	message, op := operationMessage(change.Kind, change.FacilityName)

	days := []uint32{0, 1, 2, 3, 4, 5, 6}
	storeSlots, err := st.QuerySlots(change.FacilityName, days)
	if err != nil {
		return err
	}
	slots := make([]protocol.TimeSlot, len(storeSlots))
	for i, s := range storeSlots {
		slots[i] = protocol.TimeSlot{Start: s.Start, End: s.End}
	}

	payload, err := protocol.EncodeNotification(protocol.Notification{
		Message:   message,
		Operation: op,
		BookingID: change.BookingID,
		NewStart:  change.NewStart,
		NewEnd:    change.NewEnd,
		OldStart:  change.OldStart,
		OldEnd:    change.OldEnd,
		Slots:     slots,
	})
	if err != nil {
		return err
	}

	for _, sub := range subs {
		_ = send(sub.addr, payload)
	}
	return nil
}

// evictAndSnapshotLocked removes expired subscribers for facilityName
// and returns the survivors. Must be called with r.mu held.
func (r *Registry) evictAndSnapshotLocked(facilityName string) []subscriber {
	now := time.Now()
	live := r.monitors[facilityName][:0]
	for _, sub := range r.monitors[facilityName] {
		if now.Before(sub.expiry) {
			live = append(live, sub)
		}
	}
	r.monitors[facilityName] = live

	out := make([]subscriber, len(live))
	copy(out, live)
	return out
}

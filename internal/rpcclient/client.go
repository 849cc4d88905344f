// Package rpcclient implements the request/reply transport used by the
// CLI client: send a request, retry on timeout, and separately drain
// server-pushed monitor notifications.
package rpcclient

import (
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"facilityd/internal/protocol"
)

// Client sends requests to a single server over one UDP socket and
// waits for the matching reply.
type Client struct {
	conn       *net.UDPConn
	timeout    time.Duration
	maxRetries int
	nextReqID  uint32

	// DropRate simulates client-side packet loss by discarding an
	// otherwise-valid reply and retrying, independent of any
	// server-side loss simulation.
	DropRate float64
}

// New dials serverAddr over UDP.
func New(serverAddr string, timeout time.Duration, maxRetries int) (*Client, error) {
	addr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{conn: conn, timeout: timeout, maxRetries: maxRetries, nextReqID: 1}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error { return c.conn.Close() }

// nextRequestID returns a monotonically increasing id for a new request.
func (c *Client) nextRequestID() uint32 {
	id := c.nextReqID
	c.nextReqID++
	return id
}

// Send encodes a request envelope around payload, sends it, and returns
// the decoded response envelope, resending on timeout; it makes at most
// maxRetries attempts in all.
func (c *Client) Send(messageType uint8, payload []byte) (protocol.Response, error) {
	requestID := c.nextRequestID()
	raw, err := protocol.EncodeRequest(requestID, messageType, payload)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encode request: %w", err)
	}

	buf := make([]byte, protocol.MaxDatagramSize)

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if _, err := c.conn.Write(raw); err != nil {
			return protocol.Response{}, fmt.Errorf("send request: %w", err)
		}

		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := c.conn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return protocol.Response{}, fmt.Errorf("read reply: %w", err)
		}

		if c.DropRate > 0 && rand.Float64() < c.DropRate {
			continue
		}

		resp, err := protocol.DecodeResponse(buf[:n])
		if err != nil {
			return protocol.Response{}, fmt.Errorf("decode reply: %w", err)
		}
		if resp.RequestID != requestID {
			continue
		}
		return resp, nil
	}

	return protocol.Response{}, fmt.Errorf("no reply after %d attempts", c.maxRetries)
}

// Notification is a server-pushed notification received while waiting
// in ReceiveNotifications.
type Notification struct {
	Payload protocol.Notification
	Err     error
}

// ReceiveNotifications reads server-initiated notifications (request_id
// == 0) until stop is closed, emitting each onto the returned channel.
// The reading runs on a goroutine that ReceiveNotifications starts
// itself; call it after a successful monitor registration.
func (c *Client) ReceiveNotifications(stop <-chan struct{}) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		buf := make([]byte, protocol.MaxDatagramSize)
		for {
			select {
			case <-stop:
				return
			default:
			}

			c.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			n, err := c.conn.Read(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				select {
				case out <- Notification{Err: err}:
				case <-stop:
				}
				return
			}

			resp, err := protocol.DecodeResponse(buf[:n])
			if err != nil || resp.RequestID != 0 {
				continue
			}
			n2, err := protocol.DecodeNotification(resp.Body)
			if err != nil {
				continue
			}
			select {
			case out <- Notification{Payload: n2}:
			case <-stop:
				return
			}
		}
	}()
	return out
}

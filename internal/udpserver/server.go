// Package udpserver owns the UDP socket: a single reader goroutine feeds
// a bounded pool of worker goroutines, each of which asks the dispatcher
// to handle one datagram and writes back its reply.
package udpserver

import (
	"context"
	"math/rand/v2"
	"net"
	"runtime"

	"pkt.systems/pslog"

	"facilityd/internal/dedup"
)

const maxDatagramSize = 65507

// Handler processes one decoded request and returns the response
// datagram to send back.
type Handler func(data []byte, from *net.UDPAddr) ([]byte, error)

// Config parameterizes the server.
type Config struct {
	Addr string

	// Workers bounds the number of datagrams processed concurrently.
	// Zero falls back to runtime.NumCPU(), with a floor of 4.
	Workers int

	// AtMostOnce turns on the response cache: a repeated (client,
	// request id) pair replays the cached reply instead of re-running
	// Handler.
	AtMostOnce bool
	Cache      *dedup.Cache

	// DropRate simulates network loss for experimentation: a response
	// that would otherwise be sent is silently dropped with this
	// probability, in [0, 1].
	DropRate float64

	// CacheHits, if set, is incremented once per request served from
	// the at-most-once response cache.
	CacheHits interface{ Inc() }
}

// Server reads UDP datagrams and dispatches them across a worker pool.
type Server struct {
	cfg     Config
	conn    *net.UDPConn
	handler Handler
	log     pslog.Logger
	jobs    chan job
}

type job struct {
	data []byte
	from *net.UDPAddr
}

// New binds the UDP socket and prepares the worker pool; it does not
// start reading until Run is called.
func New(cfg Config, handler Handler, log pslog.Logger) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers < 4 {
			cfg.Workers = 4
		}
	}
	if cfg.AtMostOnce && cfg.Cache == nil {
		cfg.Cache = dedup.New(dedup.DefaultTTL, dedup.DefaultMaxKeys)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		conn:    conn,
		handler: handler,
		log:     log,
		jobs:    make(chan job, cfg.Workers*4),
	}, nil
}

// LocalAddr returns the bound socket address.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying socket.
func (s *Server) Close() error { return s.conn.Close() }

// WriteTo sends a datagram that did not originate as a reply to a
// client request, such as a monitor notification, subject to the same
// simulated-loss knob as ordinary replies.
func (s *Server) WriteTo(payload []byte, to *net.UDPAddr) error {
	s.write(payload, to)
	return nil
}

// Run starts the worker pool and the single reader loop. It blocks
// until ctx is cancelled; cancelling ctx closes the socket so a pending
// read returns. Other read errors are logged and reading continues.
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for i := 0; i < s.cfg.Workers; i++ {
		go s.worker(ctx)
	}

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.log != nil {
				s.log.Warn("udpserver.read_failed", "err", err)
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.jobs <- job{data: data, from: from}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			s.process(j)
		}
	}
}

func (s *Server) process(j job) {
	if s.cfg.AtMostOnce && len(j.data) >= 4 {
		requestID := requestIDOf(j.data)
		if cached, ok := s.cfg.Cache.Get(j.from, requestID); ok {
			if s.cfg.CacheHits != nil {
				s.cfg.CacheHits.Inc()
			}
			s.write(cached, j.from)
			return
		}

		resp, err := s.handler(j.data, j.from)
		if err != nil {
			if s.log != nil {
				s.log.Error("udpserver.handler_failed", "err", err)
			}
			return
		}
		s.cfg.Cache.Put(j.from, requestID, resp)
		s.write(resp, j.from)
		return
	}

	resp, err := s.handler(j.data, j.from)
	if err != nil {
		if s.log != nil {
			s.log.Error("udpserver.handler_failed", "err", err)
		}
		return
	}
	s.write(resp, j.from)
}

func (s *Server) write(resp []byte, to *net.UDPAddr) {
	if s.cfg.DropRate > 0 && rand.Float64() < s.cfg.DropRate {
		if s.log != nil {
			s.log.Debug("udpserver.simulated_drop", "to", to.String())
		}
		return
	}
	if _, err := s.conn.WriteToUDP(resp, to); err != nil && s.log != nil {
		s.log.Warn("udpserver.write_failed", "err", err)
	}
}

// requestIDOf reads the big-endian request_id from the first four bytes
// of a request datagram without pulling in the protocol package, so the
// transport stays decodable independently of wire-format changes
// elsewhere.
func requestIDOf(data []byte) uint32 {
	return uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
}

// Package protocol implements the big-endian wire codec and the
// request/response envelopes shared by the facility booking server and
// client.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxDatagramSize is the largest payload a single UDP datagram may carry
// on the platforms this service targets.
const MaxDatagramSize = 65507

// ErrUnderflow is returned by Reader methods when the buffer does not
// contain enough bytes to satisfy the read.
var ErrUnderflow = errors.New("protocol: buffer underflow")

// Writer accumulates an outgoing frame. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity pre-reserved.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteInt32 writes v as the two's-complement bit pattern of a uint32,
// matching the wire compatibility note in the protocol for signed fields
// such as offset_minutes.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteTime writes t as seconds-since-epoch in a u32 (valid until 2106).
func (w *Writer) WriteTime(t uint32) {
	w.WriteUint32(t)
}

// WriteString writes a u16 length prefix followed by the raw bytes of s.
func (w *Writer) WriteString(s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("protocol: string too long (%d bytes)", len(s))
	}
	w.WriteUint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated frame. The caller must not mutate it.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader walks an incoming frame with a cursor, failing with
// ErrUnderflow on any read past the end.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) ReadUint8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, ErrUnderflow
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, ErrUnderflow
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrUnderflow
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadInt32 reinterprets the next u32's bit pattern as a signed value.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (r *Reader) ReadTime() (uint32, error) {
	return r.ReadUint32()
}

func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	if r.pos+int(length) > len(r.buf) {
		return "", ErrUnderflow
	}
	s := string(r.buf[r.pos : r.pos+int(length)])
	r.pos += int(length)
	return s, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ErrUnderflow
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

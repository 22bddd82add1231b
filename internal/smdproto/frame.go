// Package smdproto implements the SMD wire codec: a fixed four-field frame
// (version, type, data_length, data) exchanged over a single TCP connection
// for the duration of one sync session.
package smdproto

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Version is the only protocol version this implementation speaks. Frames
// carrying any other version are a protocol error — never silently
// accepted or rejected without surfacing the mismatch to the caller.
const Version byte = 1

// Type is the one-byte frame discriminant. The wire byte selects the
// payload schema directly; there is no reflection involved.
type Type byte

// Frame types, per the wire format table.
const (
	TypeConnect       Type = 1
	TypeDisconnect    Type = 2
	TypeUpdateRequest Type = 3
	TypeUpdate        Type = 4
	TypeUpdated       Type = 5
	TypeUpload        Type = 6
	TypeDownload      Type = 7
	TypeOther         Type = 0
)

// String renders a Type for logging.
func (t Type) String() string {
	switch t {
	case TypeConnect:
		return "Connect"
	case TypeDisconnect:
		return "Disconnect"
	case TypeUpdateRequest:
		return "UpdateRequest"
	case TypeUpdate:
		return "Update"
	case TypeUpdated:
		return "Updated"
	case TypeUpload:
		return "Upload"
	case TypeDownload:
		return "Download"
	default:
		return "Other"
	}
}

// ToType maps an arbitrary wire byte to a Type, defaulting unrecognized
// values to TypeOther per the forward-compatibility contract in the wire
// format table.
func ToType(b byte) Type {
	switch Type(b) {
	case TypeConnect, TypeDisconnect, TypeUpdateRequest, TypeUpdate, TypeUpdated, TypeUpload, TypeDownload:
		return Type(b)
	default:
		return TypeOther
	}
}

// MaxDataLength bounds the accepted data_length to guard receiver memory.
// The reference figure is 2^31-1; implementations may tighten it further.
const MaxDataLength = (1 << 31) - 1

// headerSize is version(1) + type(1) + data_length(4).
const headerSize = 6

// Frame is one unit on the wire: a header plus an opaque payload.
type Frame struct {
	Version byte
	Type    Type
	Data    []byte
}

// ErrUnsupportedVersion is returned when a received frame's version byte
// does not match Version. Receivers MUST surface this, never reject it
// silently.
var ErrUnsupportedVersion = errors.New("smdproto: unsupported frame version")

// ErrDataTooLarge is returned when a received data_length exceeds
// MaxDataLength.
var ErrDataTooLarge = errors.New("smdproto: data_length exceeds maximum")

// ErrShortFrame is returned when the stream ends before a complete header
// or payload has been read.
var ErrShortFrame = errors.New("smdproto: short read assembling frame")

// New builds a Frame of the given type carrying data, using the current
// protocol Version.
func New(t Type, data []byte) Frame {
	return Frame{Version: Version, Type: t, Data: data}
}

// Send writes a frame to w in full, retrying partial writes via io.Writer's
// own contract (Write either writes everything or returns an error — the
// retry loop here exists for composed writers that may legitimately return
// short, non-error writes).
func Send(w io.Writer, f Frame) error {
	if len(f.Data) > MaxDataLength {
		return fmt.Errorf("smdproto: send: %w (%d > %d)", ErrDataTooLarge, len(f.Data), MaxDataLength)
	}

	buf := make([]byte, headerSize+len(f.Data))
	buf[0] = f.Version
	buf[1] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(f.Data)))
	copy(buf[6:], f.Data)

	if err := writeFull(w, buf); err != nil {
		return fmt.Errorf("smdproto: send: %w", err)
	}

	return nil
}

// writeFull retries Write until buf is fully written or an error occurs.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}

		buf = buf[n:]
	}

	return nil
}

// Receive reads exactly one frame from r: 6 header bytes, then exactly
// data_length payload bytes. Short reads return ErrShortFrame. An unknown
// version returns ErrUnsupportedVersion; the caller decides whether that is
// fatal (it always is, per the protocol contract).
func Receive(r io.Reader) (Frame, error) {
	header := make([]byte, headerSize)

	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("smdproto: receive header: %w: %w", ErrShortFrame, err)
		}

		return Frame{}, fmt.Errorf("smdproto: receive header: %w", err)
	}

	version := header[0]
	frameType := ToType(header[1])
	dataLength := binary.BigEndian.Uint32(header[2:6])

	if version != Version {
		return Frame{}, fmt.Errorf("smdproto: receive: %w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	if dataLength > MaxDataLength {
		return Frame{}, fmt.Errorf("smdproto: receive: %w (%d > %d)", ErrDataTooLarge, dataLength, MaxDataLength)
	}

	data := make([]byte, dataLength)
	if dataLength > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("smdproto: receive payload: %w: %w", ErrShortFrame, err)
			}

			return Frame{}, fmt.Errorf("smdproto: receive payload: %w", err)
		}
	}

	return Frame{Version: version, Type: frameType, Data: data}, nil
}

// minReadDeadline is the floor applied to every per-frame read deadline,
// regardless of the frame's declared size, so that tiny control frames
// (Connect, Disconnect, Updated) still get a reasonable window on a slow
// link.
const minReadDeadline = 5 * time.Second

// bytesPerDeadlineSecond is the assumed minimum sustained throughput used
// to scale the read deadline to a frame's declared data_length. 256 KiB/s
// is conservative enough to tolerate a slow link without making a stalled
// peer wait indefinitely.
const bytesPerDeadlineSecond = 256 * 1024

// maxReadDeadline caps the scaled deadline so a maliciously large
// data_length cannot be used to hold a connection open far beyond any
// realistic transfer time before the length check even applies.
const maxReadDeadline = 10 * time.Minute

// DeadlineFor returns a read deadline proportional to an expected payload
// size, bounded by [minReadDeadline, maxReadDeadline]. Used by ReceiveCtx to
// size per-frame socket deadlines; §5 requires a deadline proportional to
// data_length but leaves the scaling factor unspecified, so this fixes a
// concrete, generous policy.
func DeadlineFor(dataLength int) time.Duration {
	d := minReadDeadline + time.Duration(dataLength/bytesPerDeadlineSecond)*time.Second
	if d > maxReadDeadline {
		return maxReadDeadline
	}

	return d
}

// ReceiveCtx reads one frame from conn, applying a read deadline sized for a
// worst-case header-only frame, then re-arms the deadline once the header is
// known to cover the declared payload. Returns an error immediately if ctx
// is already canceled.
func ReceiveCtx(ctx context.Context, conn net.Conn) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(minReadDeadline)); err != nil {
		return Frame{}, fmt.Errorf("smdproto: set read deadline: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("smdproto: receive header: %w: %w", ErrShortFrame, err)
		}

		return Frame{}, fmt.Errorf("smdproto: receive header: %w", err)
	}

	version := header[0]
	frameType := ToType(header[1])
	dataLength := binary.BigEndian.Uint32(header[2:6])

	if version != Version {
		return Frame{}, fmt.Errorf("smdproto: receive: %w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	if dataLength > MaxDataLength {
		return Frame{}, fmt.Errorf("smdproto: receive: %w (%d > %d)", ErrDataTooLarge, dataLength, MaxDataLength)
	}

	if err := conn.SetReadDeadline(time.Now().Add(DeadlineFor(int(dataLength)))); err != nil {
		return Frame{}, fmt.Errorf("smdproto: set read deadline: %w", err)
	}

	data := make([]byte, dataLength)
	if dataLength > 0 {
		if _, err := io.ReadFull(conn, data); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("smdproto: receive payload: %w: %w", ErrShortFrame, err)
			}

			return Frame{}, fmt.Errorf("smdproto: receive payload: %w", err)
		}
	}

	return Frame{Version: version, Type: frameType, Data: data}, nil
}

// SendCtx writes a frame to conn under a write deadline sized the same way
// as ReceiveCtx's payload deadline.
func SendCtx(ctx context.Context, conn net.Conn, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(DeadlineFor(len(f.Data)))); err != nil {
		return fmt.Errorf("smdproto: set write deadline: %w", err)
	}

	return Send(conn, f)
}

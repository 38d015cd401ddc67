// Package receiver listens for replayed datagrams and decodes them back into
// numeric values.
package receiver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/zsiec/udpreplay/internal/logger"
	"github.com/zsiec/udpreplay/internal/replay/packet"
)

const (
	maxDatagramSize = 65535
	pollInterval    = 100 * time.Millisecond
)

// Datagram is one decoded payload.
type Datagram struct {
	From     net.Addr
	Values   []float64
	Trailing int // bytes past the last whole element, ignored
}

// Handler is called for every datagram received.
type Handler func(Datagram)

// Listener receives datagrams on a bound UDP socket.
type Listener struct {
	conn   *net.UDPConn
	width  packet.Width
	logger logger.Logger
}

// Listen binds address ("host:port") and decodes payloads as elements of w.
func Listen(address string, w packet.Width, log logger.Logger) (*Listener, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("unsupported element width: %d bytes", int(w))
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Listener{
		conn:   conn,
		width:  w,
		logger: log.WithField("component", "receiver"),
	}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is done, passing each to handle. It returns
// ctx.Err() on cancellation.
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	buf := make([]byte, maxDatagramSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Deadline lets the loop observe cancellation.
		if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("UDP read error: %w", err)
		}

		d := Decode(buf[:n], l.width)
		d.From = from
		if d.Trailing > 0 {
			l.logger.WithFields(map[string]interface{}{
				"from":     from.String(),
				"size":     n,
				"trailing": d.Trailing,
			}).Debug("Datagram size is not a multiple of the element width")
		}
		handle(d)
	}
}

// Close releases the socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Decode unpacks as many whole elements as the payload holds.
func Decode(payload []byte, w packet.Width) Datagram {
	size := int(w)
	trailing := len(payload) % size
	values, _ := packet.Unpack(payload[:len(payload)-trailing], w)
	return Datagram{Values: values, Trailing: trailing}
}

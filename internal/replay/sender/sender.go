// Package sender owns the datagram socket used by the replay loop.
package sender

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// PacketConn is the subset of net.PacketConn the sender needs. It lets
// tests replace the socket.
type PacketConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

// UDPSender writes each payload as one datagram to a fixed endpoint. The
// socket is unconnected, so an ICMP port-unreachable reply from a closed
// destination does not fail later writes.
type UDPSender struct {
	conn        PacketConn
	remote      *net.UDPAddr
	writeBuffer int
}

// Option configures a UDPSender.
type Option func(*UDPSender)

// WithWriteBuffer sets the socket send buffer size in bytes.
func WithWriteBuffer(bytes int) Option {
	return func(s *UDPSender) {
		s.writeBuffer = bytes
	}
}

// Dial resolves address:port and opens an unconnected UDP socket of the
// matching family on an ephemeral local port. The caller must Close it.
func Dial(ctx context.Context, address string, port int, opts ...Option) (*UDPSender, error) {
	destination := net.JoinHostPort(address, strconv.Itoa(port))

	s := &UDPSender{}
	for _, opt := range opts {
		opt(s)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket for %s: %w", destination, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("failed to create socket for %s: no addresses", destination)
	}
	s.remote = &net.UDPAddr{IP: ips[0].IP, Port: port, Zone: ips[0].Zone}

	network := "udp6"
	if s.remote.IP.To4() != nil {
		network = "udp4"
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to create socket for %s: %w", destination, err)
	}

	if s.writeBuffer > 0 {
		if udp, ok := conn.(*net.UDPConn); ok {
			if err := udp.SetWriteBuffer(s.writeBuffer); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to set write buffer: %w", err)
			}
		}
	}

	s.conn = conn
	return s, nil
}

// New wraps an existing socket that sends to remote.
func New(conn PacketConn, remote *net.UDPAddr) *UDPSender {
	return &UDPSender{conn: conn, remote: remote}
}

// Send writes payload as a single datagram and returns the bytes written.
// A failed write returns 0 and the error.
func (s *UDPSender) Send(payload []byte) (int, error) {
	n, err := s.conn.WriteTo(payload, s.remote)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Destination returns "host:port" of the endpoint.
func (s *UDPSender) Destination() string {
	if s.remote == nil {
		return ""
	}
	return s.remote.String()
}

// Close closes the socket.
func (s *UDPSender) Close() error {
	return s.conn.Close()
}

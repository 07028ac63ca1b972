package transport

import (
	"context"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

// maxDatagram is the largest UDP payload the read loop accepts.
const maxDatagram = 64 * 1024

// UDPConfig configures a UDPLink.
type UDPConfig struct {
	Config

	// RateLimit caps outbound datagrams per second. 0 disables the limit.
	RateLimit float64

	// Burst is the limiter bucket size. Default: 1 when RateLimit is set.
	Burst int
}

// UDPLink sends one datagram per frame.
type UDPLink struct {
	conn    *net.UDPConn
	addr    address.Address
	limiter *rate.Limiter

	in        chan Datagram
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Link = (*UDPLink)(nil)

// ListenUDP binds listen (host:port, port 0 for ephemeral) and starts reading.
func ListenUDP(listen string, cfg UDPConfig) (*UDPLink, error) {
	ua, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidAddress, "resolve listen address", errors.WithAddress(listen))
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "udp listen", errors.WithAddress(listen))
	}

	l := &UDPLink{
		conn:   conn,
		addr:   address.FromUDP(conn.LocalAddr().(*net.UDPAddr)),
		in:     make(chan Datagram, cfg.inboxSize()),
		closed: make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	go l.readLoop()
	return l, nil
}

// Addr returns the bound local address.
func (l *UDPLink) Addr() address.Address {
	return l.addr
}

// Send writes frame as a single datagram.
func (l *UDPLink) Send(to address.Address, frame []byte) error {
	select {
	case <-l.closed:
		return errors.Closed("send")
	default:
	}

	if l.limiter != nil && !l.limiter.Allow() {
		return errors.New(errors.CodeRateLimit, "outbound rate limit exceeded",
			errors.WithOp("send"), errors.WithAddress(to.String()))
	}

	ra, err := net.ResolveUDPAddr("udp", to.String())
	if err != nil {
		return errors.Wrap(err, errors.CodeUnreachable, "resolve peer", errors.WithAddress(to.String()))
	}
	if _, err := l.conn.WriteToUDP(frame, ra); err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "udp write", errors.WithAddress(to.String()))
	}
	return nil
}

// Recv returns the next inbound datagram.
func (l *UDPLink) Recv(ctx context.Context) (Datagram, bool) {
	select {
	case <-l.closed:
		return Datagram{}, false
	case <-ctx.Done():
		return Datagram{}, false
	case dg := <-l.in:
		return dg, true
	}
}

// Close stops the read loop and releases the socket.
func (l *UDPLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.conn.Close()
	})
	return err
}

func (l *UDPLink) readLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case l.in <- Datagram{From: address.FromUDP(raddr), Data: data}:
		case <-l.closed:
			return
		}
	}
}

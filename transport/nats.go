package transport

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

// HeaderFrom carries the sender address on NATS messages.
const HeaderFrom = "Netbus-From"

// NATSConfig holds NATS link configuration.
type NATSConfig struct {
	Config

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// SubjectPrefix namespaces per-address subjects.
	// Default: "netbus"
	SubjectPrefix string

	// Token for token-based auth.
	Token string

	// User and Password for basic auth.
	User     string
	Password string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		SubjectPrefix:  "netbus",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// NATSLink maps each address to a subject on a shared NATS server.
type NATSLink struct {
	conn   *nats.Conn
	owned  bool
	self   address.Address
	prefix string
	sub    *nats.Subscription

	in        chan Datagram
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Link = (*NATSLink)(nil)

// DialNATS connects to the server and subscribes to self's subject.
func DialNATS(self address.Address, cfg NATSConfig) (*NATSLink, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	conn, err := nats.Connect(cfg.URL, buildNATSOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "nats connect", errors.WithAddress(cfg.URL))
	}

	l, err := NewNATSLinkFromConn(conn, self, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// NewNATSLinkFromConn creates a link on an existing connection.
// The connection is left open by Close.
func NewNATSLinkFromConn(conn *nats.Conn, self address.Address, cfg NATSConfig) (*NATSLink, error) {
	if self.IsZero() {
		return nil, errors.New(errors.CodeInvalidAddress, "nats link needs a self address", errors.WithOp("listen"))
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultNATSConfig().SubjectPrefix
	}

	l := &NATSLink{
		conn:   conn,
		self:   self,
		prefix: prefix,
		in:     make(chan Datagram, cfg.inboxSize()),
		closed: make(chan struct{}),
	}

	sub, err := conn.Subscribe(SubjectFor(prefix, self), func(m *nats.Msg) {
		dg, ok := datagramFromMsg(m)
		if !ok {
			return
		}
		select {
		case l.in <- dg:
		default:
			// Buffer full
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "nats subscribe", errors.WithAddress(self.String()))
	}
	l.sub = sub
	return l, nil
}

func buildNATSOptions(cfg NATSConfig) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

var subjectEscaper = strings.NewReplacer(".", "_", ":", "-", "[", "", "]", "")

// SubjectFor returns the NATS subject frames for addr are published on.
func SubjectFor(prefix string, addr address.Address) string {
	return prefix + "." + subjectEscaper.Replace(addr.String())
}

func datagramFromMsg(m *nats.Msg) (Datagram, bool) {
	if m == nil || m.Header == nil {
		return Datagram{}, false
	}
	from, err := address.Parse(m.Header.Get(HeaderFrom))
	if err != nil {
		return Datagram{}, false
	}
	return Datagram{From: from, Data: m.Data}, true
}

// Addr returns the link's logical address.
func (l *NATSLink) Addr() address.Address {
	return l.self
}

// Send publishes frame on the peer's subject.
func (l *NATSLink) Send(to address.Address, frame []byte) error {
	select {
	case <-l.closed:
		return errors.Closed("send")
	default:
	}
	if l.conn.IsClosed() {
		return errors.Closed("send")
	}

	msg := nats.NewMsg(SubjectFor(l.prefix, to))
	msg.Header.Set(HeaderFrom, l.self.String())
	msg.Data = frame

	if err := l.conn.PublishMsg(msg); err != nil {
		if stderrors.Is(err, nats.ErrConnectionClosed) {
			return errors.Closed("send")
		}
		return errors.Wrap(err, errors.CodeNetwork, "nats publish", errors.WithAddress(to.String()))
	}
	return nil
}

// Recv returns the next inbound frame.
func (l *NATSLink) Recv(ctx context.Context) (Datagram, bool) {
	select {
	case <-l.closed:
		return Datagram{}, false
	case <-ctx.Done():
		return Datagram{}, false
	case dg := <-l.in:
		return dg, true
	}
}

// Close unsubscribes and, for links created by DialNATS, closes the connection.
func (l *NATSLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		if l.sub != nil {
			err = l.sub.Unsubscribe()
		}
		if l.owned {
			l.conn.Close()
		}
	})
	if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

// Conn returns the underlying NATS connection for advanced use.
func (l *NATSLink) Conn() *nats.Conn {
	return l.conn
}

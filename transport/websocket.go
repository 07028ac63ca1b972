package transport

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/errors"
)

// WebSocketConfig holds WebSocket link configuration.
type WebSocketConfig struct {
	Config // Embed base config

	// Path the listener upgrades on and peers are dialed at.
	// Default: "/netbus"
	Path string

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds outbound dials.
	HandshakeTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:           DefaultConfig(),
		Path:             "/netbus",
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		MaxMessageSize:   1024 * 1024, // 1MB
	}
}

// WebSocketLink carries frames as binary WebSocket messages. It accepts
// inbound peers on an HTTP listener and dials outbound peers on first send,
// reusing whichever connection to a peer exists.
type WebSocketLink struct {
	config   WebSocketConfig
	self     address.Address
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	mu    sync.Mutex
	peers map[address.Address]*wsPeer
	live  map[*wsPeer]struct{}

	in        chan Datagram
	closed    chan struct{}
	closeOnce sync.Once
}

type wsPeer struct {
	addr address.Address
	conn *websocket.Conn
	wmu  sync.Mutex
}

var _ Link = (*WebSocketLink)(nil)

// ListenWebSocket binds listen and serves upgrades on cfg.Path.
func ListenWebSocket(listen string, cfg WebSocketConfig) (*WebSocketLink, error) {
	defaults := DefaultWebSocketConfig()
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "websocket listen", errors.WithAddress(listen))
	}
	self, err := address.Parse(ln.Addr().String())
	if err != nil {
		ln.Close()
		return nil, err
	}

	l := &WebSocketLink{
		config:   cfg,
		self:     self,
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // peers are not browsers
		},
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		peers:  make(map[address.Address]*wsPeer),
		live:   make(map[*wsPeer]struct{}),
		in:     make(chan Datagram, cfg.inboxSize()),
		closed: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, l.serveUpgrade)
	l.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go l.server.Serve(ln)
	return l, nil
}

// Addr returns the bound listener address.
func (l *WebSocketLink) Addr() address.Address {
	return l.self
}

// serveUpgrade accepts an inbound peer. The peer names its own address in
// the "from" query parameter so replies can reuse the connection.
func (l *WebSocketLink) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	from, err := address.Parse(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "missing or invalid from address", http.StatusBadRequest)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(l.config.MaxMessageSize)

	p := &wsPeer{addr: from, conn: conn}
	l.mu.Lock()
	if l.isClosed() {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.live[p] = struct{}{}
	if _, exists := l.peers[from]; !exists {
		l.peers[from] = p
	}
	l.mu.Unlock()

	l.readLoop(p)
}

func (l *WebSocketLink) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Send writes frame to the peer, dialing it if needed.
func (l *WebSocketLink) Send(to address.Address, frame []byte) error {
	if l.isClosed() {
		return errors.Closed("send")
	}

	p, err := l.peer(to)
	if err != nil {
		return err
	}

	p.wmu.Lock()
	p.conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
	err = p.conn.WriteMessage(websocket.BinaryMessage, frame)
	p.wmu.Unlock()

	if err != nil {
		// Drop the broken connection so the next send re-dials.
		l.drop(p)
		return errors.Wrap(err, errors.CodeNetwork, "websocket write", errors.WithAddress(to.String()))
	}
	return nil
}

func (l *WebSocketLink) peer(to address.Address) (*wsPeer, error) {
	l.mu.Lock()
	p, ok := l.peers[to]
	l.mu.Unlock()
	if ok {
		return p, nil
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     to.String(),
		Path:     l.config.Path,
		RawQuery: url.Values{"from": {l.self.String()}}.Encode(),
	}
	conn, _, err := l.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnreachable, "websocket dial", errors.WithAddress(to.String()))
	}
	conn.SetReadLimit(l.config.MaxMessageSize)

	p = &wsPeer{addr: to, conn: conn}
	l.mu.Lock()
	if l.isClosed() {
		// Close ran while dialing and will not see this connection.
		l.mu.Unlock()
		conn.Close()
		return nil, errors.Closed("send")
	}
	if existing, ok := l.peers[to]; ok {
		// Lost a race with another sender or an inbound upgrade.
		l.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	l.peers[to] = p
	l.live[p] = struct{}{}
	l.mu.Unlock()

	go l.readLoop(p)
	return p, nil
}

func (l *WebSocketLink) readLoop(p *wsPeer) {
	defer l.drop(p)

	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		select {
		case l.in <- Datagram{From: p.addr, Data: data}:
		case <-l.closed:
			return
		}
	}
}

func (l *WebSocketLink) drop(p *wsPeer) {
	l.mu.Lock()
	if l.peers[p.addr] == p {
		delete(l.peers, p.addr)
	}
	delete(l.live, p)
	l.mu.Unlock()
	p.conn.Close()
}

// Recv returns the next inbound frame.
func (l *WebSocketLink) Recv(ctx context.Context) (Datagram, bool) {
	select {
	case <-l.closed:
		return Datagram{}, false
	case <-ctx.Done():
		return Datagram{}, false
	case dg := <-l.in:
		return dg, true
	}
}

// Close stops the listener and closes every peer connection.
func (l *WebSocketLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()

		l.mu.Lock()
		peers := make([]*wsPeer, 0, len(l.live))
		for p := range l.live {
			peers = append(peers, p)
		}
		l.peers = make(map[address.Address]*wsPeer)
		l.live = make(map[*wsPeer]struct{})
		l.mu.Unlock()

		for _, p := range peers {
			p.wmu.Lock()
			p.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			p.wmu.Unlock()
			p.conn.Close()
		}
	})
	return err
}

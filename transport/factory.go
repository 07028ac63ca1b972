package transport

import (
	"fmt"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/config"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
)

// NewFactory returns a Factory for the link kind named in cfg.Transport.
// Nothing is bound until the Factory is called.
//
// The memory kind attaches to sw, which may be nil for the other kinds.
func NewFactory(cfg config.Config, sw *Switch, log *logging.Logger) Factory {
	mcfg := ManagerConfig{Logger: log}
	tc := cfg.Transport

	return func() (Collaborator, error) {
		link, err := openLink(cfg.Node.Name, tc, sw)
		if err != nil {
			return nil, err
		}
		return NewManager(link, mcfg), nil
	}
}

func openLink(name string, tc config.Transport, sw *Switch) (Link, error) {
	inbox := Config{InboxSize: tc.InboxSize}

	switch tc.Kind {
	case config.KindUDP:
		return ListenUDP(tc.Listen, UDPConfig{
			Config:    inbox,
			RateLimit: tc.UDP.RateLimit,
			Burst:     tc.UDP.Burst,
		})

	case config.KindNATS:
		self, err := address.Parse(tc.Listen)
		if err != nil {
			return nil, err
		}
		ncfg := DefaultNATSConfig()
		ncfg.Config = inbox
		ncfg.URL = tc.NATS.URL
		ncfg.Name = name
		ncfg.Token = tc.NATS.Token
		ncfg.User = tc.NATS.User
		ncfg.Password = tc.NATS.Password
		if tc.NATS.SubjectPrefix != "" {
			ncfg.SubjectPrefix = tc.NATS.SubjectPrefix
		}
		if tc.NATS.ReconnectWait.Duration > 0 {
			ncfg.ReconnectWait = tc.NATS.ReconnectWait.Duration
		}
		return DialNATS(self, ncfg)

	case config.KindWebSocket:
		wcfg := DefaultWebSocketConfig()
		wcfg.Config = inbox
		if tc.WebSocket.Path != "" {
			wcfg.Path = tc.WebSocket.Path
		}
		if tc.WebSocket.WriteTimeout.Duration > 0 {
			wcfg.WriteTimeout = tc.WebSocket.WriteTimeout.Duration
		}
		return ListenWebSocket(tc.Listen, wcfg)

	case config.KindMemory:
		if sw == nil {
			return nil, errors.New(errors.CodeNotInitialized, "memory transport needs a switch")
		}
		self, err := address.Parse(tc.Listen)
		if err != nil {
			return nil, err
		}
		return sw.Listen(self)

	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown transport kind %q", tc.Kind))
	}
}

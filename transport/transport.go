package transport

import (
	"context"

	"github.com/vinayprograms/netbus/address"
)

// Handler is invoked for each inbound message carrying a registered command.
type Handler func(from address.Address, data string)

// Collaborator is the transport contract consumed by the command bus.
// All methods may block on I/O and are safe for concurrent use.
type Collaborator interface {
	// On registers h for command and returns a func that removes it.
	On(command string, h Handler) (cancel func(), err error)

	// SendText sends command and data joined by sep to the peer.
	SendText(to address.Address, command, data string, sep byte) error

	// SendBytes sends data to the peer without framing.
	SendBytes(to address.Address, data []byte) error

	// Shutdown stops the transport. Safe to call more than once.
	Shutdown() error
}

// Factory constructs a Collaborator. The bus calls it at most once.
type Factory func() (Collaborator, error)

// Datagram is one inbound frame and its sender.
type Datagram struct {
	From address.Address
	Data []byte
}

// Link moves opaque frames between endpoints.
type Link interface {
	// Addr returns the local endpoint address.
	Addr() address.Address

	// Send delivers one frame to the peer.
	Send(to address.Address, frame []byte) error

	// Recv blocks for the next inbound frame. ok is false once the link is
	// closed or ctx is done.
	Recv(ctx context.Context) (dg Datagram, ok bool)

	// Close releases the link. Safe to call more than once.
	Close() error
}

// Config holds settings shared by links.
type Config struct {
	// InboxSize bounds buffered inbound frames.
	// Default: 256
	InboxSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InboxSize: 256,
	}
}

func (c Config) inboxSize() int {
	if c.InboxSize <= 0 {
		return DefaultConfig().InboxSize
	}
	return c.InboxSize
}

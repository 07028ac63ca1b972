package netbus

import (
	"sync"

	"github.com/vinayprograms/netbus/address"
	"github.com/vinayprograms/netbus/config"
	"github.com/vinayprograms/netbus/errors"
	"github.com/vinayprograms/netbus/logging"
	"github.com/vinayprograms/netbus/transport"
)

var (
	defaultMu      sync.Mutex
	defaultOptions Options
	defaultBus     *Bus
)

// SetDefaultFactory sets the factory the process-wide bus is built with.
// It must be called before the first call to Default; afterwards it
// returns CLOSED.
func SetDefaultFactory(f transport.Factory) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus != nil {
		return errors.New(errors.CodeClosed, "default bus already created", errors.WithOp("set default"))
	}
	defaultOptions.Factory = f
	return nil
}

// SetDefaultOptions replaces all options of the process-wide bus, with the
// same restriction as SetDefaultFactory.
func SetDefaultOptions(opts Options) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus != nil {
		return errors.New(errors.CodeClosed, "default bus already created", errors.WithOp("set default"))
	}
	defaultOptions = opts
	return nil
}

// Default returns the process-wide bus, creating it on first call. Without
// SetDefaultFactory it binds UDP on an ephemeral port.
func Default() *Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		opts := defaultOptions
		if opts.Factory == nil {
			log := opts.Logger
			if log == nil {
				log = logging.Nop()
			}
			opts.Factory = transport.NewFactory(config.Default(), nil, log)
		}
		defaultBus = New(opts)
	}
	return defaultBus
}

// On registers cb on the default bus.
func On(command string, cb Handler) func() {
	return Default().On(command, cb)
}

// Send sends command and data on the default bus.
func Send(to address.Address, command, data string) bool {
	return Default().Send(to, command, data)
}

// SendData sends raw bytes on the default bus.
func SendData(to address.Address, data []byte) bool {
	return Default().SendData(to, data)
}

// SendString sends the bytes of s on the default bus.
func SendString(to address.Address, s string) bool {
	return Default().SendString(to, s)
}

// resetDefault drops the process-wide bus. Tests only.
func resetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus != nil {
		defaultBus.Shutdown()
	}
	defaultBus = nil
	defaultOptions = Options{}
}

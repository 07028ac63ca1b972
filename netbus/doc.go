// Package netbus provides the command bus: a process-wide owner of one
// network transport with a small send / register surface.
//
// # Overview
//
// A Bus is cheap to create. The transport behind it is built on first use
// by a transport.Factory, exactly once, even when the first calls race.
// Every send reports success as a bool; failures are logged, counted and
// traced but never returned or panicked.
//
//	b := netbus.New(netbus.Options{Factory: transport.NewFactory(cfg, nil, log)})
//
//	cancel := b.On("getinfo", func(from address.Address, data string) {
//	    b.Send(from, "infoResponse", "\\hostname\\node-1")
//	})
//	defer cancel()
//
//	b.Send(address.Master(), "ping", "")
//	b.SendString(peer, "hello")
//
//	b.Shutdown()
//
// # Degraded Mode
//
// If the factory fails, the bus stays usable but inert: sends return false,
// On registers nothing and Init and Err return the construction error. The
// host decides whether that is fatal.
//
// # Default Instance
//
// Hosts that expect a single global bus use Default and the package-level
// On, Send, SendData and SendString. Install a factory with SetDefaultFactory
// before first use; otherwise the default binds UDP on an ephemeral port.
package netbus

// Package shutdown runs a process's teardown steps in phase order.
//
// # Overview
//
// Components register a step with a phase number. Shutdown runs phases from
// lowest to highest; steps that share a phase run concurrently, and a phase
// starts only after the previous one has fully returned. This is how a netbus
// host guarantees that the heartbeat sender has stopped before the bus it
// sends on is shut down.
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	stop := coord.HandleSignals() // SIGTERM, SIGINT
//	defer stop()
//
//	coord.RegisterFuncWithPhase("heartbeat", func(context.Context) error {
//	    return sender.Stop()
//	}, shutdown.PhaseHeartbeat)
//	coord.RegisterFuncWithPhase("netbus", func(context.Context) error {
//	    bus.Shutdown()
//	    return nil
//	}, shutdown.PhaseTransport)
//
//	<-coord.Done()
//
// # Phases
//
//   - 10 PhaseHeartbeat: stop periodic senders
//   - 20 PhaseListeners: stop bus consumers
//   - 30 PhaseTransport: shut down the bus
//   - 40 PhaseTelemetry: flush exporters
//
// Shutdown runs once. Later and concurrent calls wait for the first run and
// return its error.
package shutdown

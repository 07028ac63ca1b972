// Package heartbeat keeps the master informed that this node is alive.
//
// # Overview
//
// A Sender pings the well-known master (26.88.68.147:28960) with the
// command "ping" and an empty payload once per interval until it is
// stopped. Failed sends are counted and otherwise ignored; the next tick
// simply tries again. A Monitor runs on the master side, records when each
// peer last pinged and invokes callbacks when a peer goes quiet.
//
//	┌─────────────┐      "ping" every 5s      ┌─────────────┐
//	│   Sender    │ ───────────────────────>  │   Monitor   │
//	│   (node)    │                           │  (master)   │
//	└─────────────┘                           └─────────────┘
//
// # Usage
//
// Sending heartbeats from a node:
//
//	sender, _ := heartbeat.NewSender(heartbeat.SenderConfig{Bus: b})
//	sender.Start(ctx)
//	defer sender.Stop()
//
// Monitoring heartbeats on the master:
//
//	monitor, _ := heartbeat.NewMonitor(heartbeat.MonitorConfig{
//	    Bus:     b,
//	    Timeout: 15 * time.Second, // 3 missed heartbeats
//	})
//	monitor.OnDead(func(peer address.Address) {
//	    log.Printf("peer %s presumed dead", peer)
//	})
//	monitor.Start(ctx)
//
// # Timing
//
// The first ping goes out one interval after Start, not immediately. Stop
// blocks until the loop has exited, so no ping is sent once Stop returns.
// Tests drive the loop with a clockwork fake clock instead of sleeping.
package heartbeat

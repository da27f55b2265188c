// Package bridge provides synchronous command/response calls over the
// asynchronous message bus.
//
// A caller invokes a command and blocks until the matching response arrives
// or the deadline elapses. Underneath, the bridge publishes the command
// envelope, parks the call in a pending-request table keyed by correlation
// id, and resolves it from a long-lived response subscriber. The table entry
// is created before the command is published, closing the race where a
// response could be observed before the call is registered.
//
// The mapping from command type to command subject, response subject, and
// response decoder is held in a Registry: adding a new command/response pair
// is a registration, not a new code path.
//
// Guarantees:
//   - at most one response is delivered per invocation; duplicates and
//     late arrivals are dropped silently
//   - a timed-out call cleans up its own table entry and nothing else
//   - a malformed response is dropped without disturbing other calls
//   - the bridge never retries a publish; retries are the caller's
//     responsibility and require a fresh invocation
//
// Basic usage:
//
//	b, err := bridge.New(transport, bridge.DefaultRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	cmd := contracts.NewAppointmentCreateCommand("P1", "D1", at)
//	resp, err := b.Invoke(ctx, cmd, 10*time.Second)
package bridge

// Package router resolves each event's destination set from its "to"
// field and the registered Speaker-URI -> delivery-handler table, then
// invokes the handler for each destination (spec 4.4).
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/hublog"
)

// Handler is the opaque, effectful delivery sink the embedding
// application registers for a Speaker URI. The router treats it as
// write-only: it does not inspect what the handler does with the
// envelope, only whether it returned an error (spec 3.1 Route).
type Handler func(ctx context.Context, env *envelope.Envelope) error

// Outcome reports what happened when the router tried to deliver one
// event to one destination.
type Outcome struct {
	EventIndex  int
	EventType   envelope.EventType
	Destination string
	// Broadcast reports whether Destination was reached via broadcast
	// fan-out rather than an explicit "to".
	Broadcast bool
	// Unknown is true when Destination had no registered route.
	Unknown bool
	// Err is the handler's error, if delivery was attempted and failed.
	Err error
}

// Router owns the Speaker-URI -> Handler table and resolves/dispatches
// envelope events against it.
//
// The route table is read on every delivery and mutated by
// RegisterRoute/UnregisterRoute far less often, so it is stored as an
// immutable map behind a pointer swapped under a mutex (copy-on-write),
// matching spec 5's requirement that reads observe a consistent
// snapshot without serializing against ongoing deliveries.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Handler
	log    *hublog.Logger

	// pendingLimit bounds the per-recipient buffer of envelopes addressed
	// to a speaker URI with no registered route yet (spec 9's bounded
	// buffer-until-registered option). Zero disables buffering, which is
	// the default: drop-and-report.
	pendingLimit int
	pendingMu    sync.Mutex
	pending      map[string][]*envelope.Envelope
}

// New constructs an empty Router. A nil logger is replaced with a no-op
// logger. pendingLimit bounds the per-recipient unknown-recipient buffer;
// zero disables it.
func New(log *hublog.Logger, pendingLimit int) *Router {
	if log == nil {
		log = hublog.Nop()
	}
	r := &Router{routes: make(map[string]Handler), log: log, pendingLimit: pendingLimit}
	if pendingLimit > 0 {
		r.pending = make(map[string][]*envelope.Envelope)
	}
	return r
}

// RegisterRoute binds speakerURI to handler, replacing any prior
// binding, then flushes any envelopes buffered for speakerURI while it
// had no route (spec 9's bounded buffer-until-registered option).
func (r *Router) RegisterRoute(speakerURI string, handler Handler) {
	r.mu.Lock()
	next := make(map[string]Handler, len(r.routes)+1)
	for k, v := range r.routes {
		next[k] = v
	}
	next[speakerURI] = handler
	r.routes = next
	r.mu.Unlock()

	r.flushPending(speakerURI, handler)
}

func (r *Router) flushPending(speakerURI string, handler Handler) {
	if r.pendingLimit <= 0 {
		return
	}
	r.pendingMu.Lock()
	buffered := r.pending[speakerURI]
	delete(r.pending, speakerURI)
	r.pendingMu.Unlock()

	for _, env := range buffered {
		if err := deliver(context.Background(), handler, env); err != nil {
			r.log.Warnf("router: buffered delivery to %q failed: %v", speakerURI, err)
		} else {
			r.log.Debugf("router: delivered buffered envelope to %q", speakerURI)
		}
	}
}

// bufferPending appends env to dest's bounded buffer, dropping the
// oldest entry once the buffer is at pendingLimit capacity.
func (r *Router) bufferPending(dest string, env *envelope.Envelope) {
	if r.pendingLimit <= 0 {
		return
	}
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	buf := r.pending[dest]
	buf = append(buf, env)
	if len(buf) > r.pendingLimit {
		buf = buf[len(buf)-r.pendingLimit:]
	}
	r.pending[dest] = buf
}

// UnregisterRoute removes speakerURI's binding, if any.
func (r *Router) UnregisterRoute(speakerURI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[speakerURI]; !ok {
		return
	}
	next := make(map[string]Handler, len(r.routes))
	for k, v := range r.routes {
		if k != speakerURI {
			next[k] = v
		}
	}
	r.routes = next
}

// snapshot returns the current route table without holding the lock
// across delivery (spec 5: never hold the conversation/route lock
// across a blocking handler invocation).
func (r *Router) snapshot() map[string]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routes
}

// Route dispatches every event in env to its resolved destination set
// and returns one Outcome per (event, destination) pair. senderURI
// identifies env's sender so broadcast fan-out can exclude it.
func (r *Router) Route(ctx context.Context, env *envelope.Envelope, senderURI string) []Outcome {
	routes := r.snapshot()
	var outcomes []Outcome

	for i, ev := range env.Events {
		destinations, broadcast := resolveDestinations(ev, senderURI, routes)

		if !broadcast && routes[destinations[0]] == nil {
			// Unicast named a recipient with no registered route.
			dest := ""
			if ev.To != nil {
				dest = ev.To.SpeakerURI
			}
			r.log.Warnf("router: unknown recipient %q for event %d (%s)", dest, i, ev.EventType)
			if dest != "" {
				r.bufferPending(dest, env)
			}
			outcomes = append(outcomes, Outcome{EventIndex: i, EventType: ev.EventType, Destination: dest, Unknown: true})
			continue
		}

		for _, dest := range destinations {
			handler, ok := routes[dest]
			if !ok {
				outcomes = append(outcomes, Outcome{EventIndex: i, EventType: ev.EventType, Destination: dest, Broadcast: broadcast, Unknown: true})
				continue
			}
			err := deliver(ctx, handler, env)
			if err != nil {
				r.log.Warnf("router: delivery to %q failed for event %d (%s): %v", dest, i, ev.EventType, err)
			} else {
				r.log.Debugf("router: delivered event %d (%s) to %q", i, ev.EventType, dest)
			}
			outcomes = append(outcomes, Outcome{EventIndex: i, EventType: ev.EventType, Destination: dest, Broadcast: broadcast, Err: err})
		}
	}

	return outcomes
}

// deliver invokes handler, converting a panic into a HandlerFailure-style
// error so one misbehaving handler can never affect the router loop or
// other destinations (spec 4.4's per-destination isolation).
func deliver(ctx context.Context, handler Handler, env *envelope.Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return handler(ctx, env)
}

// resolveDestinations implements spec 4.4's destination-resolution
// rules 1-5 as a single decision: an explicit, non-ignored "to" is a
// unicast; everything else (no "to", or a private flag ignored on a
// non-utterance event) is a broadcast excluding the sender.
func resolveDestinations(ev envelope.Event, senderURI string, routes map[string]Handler) (dests []string, broadcast bool) {
	privateIgnored := ev.To != nil && ev.To.Private && ev.EventType != envelope.EventUtterance

	if ev.To != nil && ev.To.SpeakerURI != "" && !privateIgnored {
		return []string{ev.To.SpeakerURI}, false
	}

	all := make([]string, 0, len(routes))
	for uri := range routes {
		if uri == senderURI {
			continue
		}
		all = append(all, uri)
	}
	return all, true
}

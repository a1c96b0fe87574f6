// Package hub implements the Floor Manager's single entry point:
// processEnvelope dispatches each inbound event to the Floor Controller
// or the Router, owns per-conversation metadata, and synthesizes any
// outbound grant/revoke envelopes (spec 4.3).
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/floor"
	"github.com/openfloor-hub/floorhub/internal/hublog"
	"github.com/openfloor-hub/floorhub/internal/router"
)

// Config is the subset of hubconfig.Config the Hub itself consumes.
// Kept as a small local struct (rather than importing hubconfig
// directly) so internal/hub has no dependency on the YAML loading
// concern — hubconfig.Config is converted to this at construction time.
type Config struct {
	HubSpeakerURI        string
	SupportedVersions    map[string]bool
	MaxQueueDepth        int
	DefaultGrantTimeout  time.Duration
	EmitWrappedEnvelopes bool
	Lanes                int // shard count for per-conversation serialization; 0 -> 1
	// PendingDeliveryBuffer bounds the Router's optional per-recipient
	// buffer-until-registered behavior (spec 9). Zero disables it.
	PendingDeliveryBuffer int
}

// Hub is the Floor Manager's coordinator: the single entry point for
// envelopes (spec 4.3).
type Hub struct {
	cfg Config

	controller floor.Controller
	convs      *conversationRegistry
	router     *router.Router
	shard      *sharder
	log        *hublog.Logger

	now func() time.Time // overridable for tests; defaults to time.Now
}

// Option customizes Hub construction.
type Option func(*Hub)

// WithController overrides the default in-memory Floor Controller — the
// substitution point spec 9 calls out for convener delegation.
func WithController(c floor.Controller) Option {
	return func(h *Hub) { h.controller = c }
}

// WithLogger overrides the Hub and Router's logger.
func WithLogger(l *hublog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithClock overrides the Hub's notion of "now", for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// New constructs a Hub from cfg and any Options.
func New(cfg Config, opts ...Option) *Hub {
	if cfg.Lanes <= 0 {
		cfg.Lanes = 1
	}
	h := &Hub{
		cfg:   cfg,
		convs: newConversationRegistry(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = hublog.Nop()
	}
	if h.controller == nil {
		h.controller = floor.NewDefaultController(floor.Config{
			MaxQueueDepth:       cfg.MaxQueueDepth,
			DefaultGrantTimeout: cfg.DefaultGrantTimeout,
		})
	}
	h.router = router.New(h.log, cfg.PendingDeliveryBuffer)
	h.shard = newSharder(cfg.Lanes)
	return h
}

// Close stops the Hub's per-conversation worker lanes. Safe to call once
// after the embedder is done issuing ProcessEnvelope/Tick calls.
func (h *Hub) Close() {
	h.shard.close()
}

// RegisterRoute binds speakerURI to handler in the Router.
func (h *Hub) RegisterRoute(speakerURI string, handler router.Handler) {
	h.router.RegisterRoute(speakerURI, handler)
}

// UnregisterRoute removes speakerURI's binding.
func (h *Hub) UnregisterRoute(speakerURI string) {
	h.router.UnregisterRoute(speakerURI)
}

// Holder returns the current floor holder for conv, if any.
func (h *Hub) Holder(conv string) (string, bool) {
	return h.controller.PeekHolder(conv)
}

// Queue returns a snapshot of conv's pending floor requests.
func (h *Hub) Queue(conv string) []floor.Request {
	return h.controller.PeekQueue(conv)
}

// Conversation returns the locally known metadata for conv, with
// floorGranted derived live from the Controller so it can never drift
// from the authoritative holder (spec 4.3 coherence invariant).
func (h *Hub) Conversation(conv string) envelope.Conversation {
	conversants, roles := h.convs.snapshot(conv)
	holder, ok := h.controller.PeekHolder(conv)
	return envelope.Conversation{
		ID:                 conv,
		Conversants:        conversants,
		AssignedFloorRoles: roles,
		FloorGranted:       floorGrantedList(holder, ok),
	}
}

// ConversationIDs returns every conversation id the Hub currently holds
// metadata for. Used by an embedder's persistence adapter to decide what
// to snapshot; the core itself never calls this.
func (h *Hub) ConversationIDs() []string {
	return h.convs.ids()
}

// RestoreConversation seeds a conversation's metadata, floor holder, and
// pending queue from a previously saved snapshot (spec 9's persistence
// collaborator). It must be called before the conversation is touched by
// ProcessEnvelope/Tick; it does not merge with live state.
func (h *Hub) RestoreConversation(convID string, conversants []envelope.Conversant, roles map[string][]string, holder string, queue []floor.Request) {
	h.convs.setMeta(convID, conversants, roles)
	h.controller.Restore(convID, holder, queue, h.now())
}

// ProcessEnvelope decodes raw wire bytes and runs the full ingress
// pipeline (spec 4.3): decode/validate, dispatch each event to the
// Controller or pass it through, synthesize outbound envelopes, and
// hand everything to the Router for delivery.
//
// A decode failure (MalformedEnvelope/UnsupportedSchema) is returned as
// an error with no Result and no state change whatsoever (spec 8.1
// invariant 8) — the caller never even reaches the per-conversation
// lane.
func (h *Hub) ProcessEnvelope(ctx context.Context, raw []byte) (*Result, error) {
	env, err := envelope.Decode(raw, h.cfg.SupportedVersions)
	if err != nil {
		h.log.Warnf("hub: rejecting envelope: %v", err)
		return nil, err
	}

	return submitSync(h.shard, env.Conversation.ID, func() *Result {
		return h.processLocked(ctx, env)
	}), nil
}

// processLocked runs on the conversation's own lane; it is free to
// mutate that conversation's state without additional locking beyond
// what floor.Controller and conversationRegistry already provide for
// concurrent read accessors.
func (h *Hub) processLocked(ctx context.Context, env *envelope.Envelope) *Result {
	convID := env.Conversation.ID
	h.convs.reconcile(convID, env.Conversation)

	var outbound []*envelope.Envelope
	var controllerOutcomes []ControllerOutcome

	for i, ev := range env.Events {
		switch {
		case ev.EventType == envelope.EventRequestFloor:
			priority := intParam(ev.Parameters, "priority", 0)
			reason := ev.Reason
			res := h.controller.RequestFloor(convID, env.Sender.SpeakerURI, priority, reason, h.now())
			controllerOutcomes = append(controllerOutcomes, ControllerOutcome{EventIndex: i, EventType: ev.EventType, SpeakerURI: env.Sender.SpeakerURI, Outcome: res.Outcome})
			if res.Outcome == floor.Granted && res.Changed {
				conversants, roles := h.convs.snapshot(convID)
				outbound = append(outbound, h.synthesizeGrant(convID, res.NewHolder, h.now(), conversants, roles))
			}

		case ev.EventType == envelope.EventYieldFloor:
			res := h.controller.YieldFloor(convID, env.Sender.SpeakerURI, h.now())
			controllerOutcomes = append(controllerOutcomes, ControllerOutcome{EventIndex: i, EventType: ev.EventType, SpeakerURI: env.Sender.SpeakerURI, Outcome: res.Outcome})
			if res.Outcome == floor.Granted && res.NewHolder != "" {
				conversants, roles := h.convs.snapshot(convID)
				outbound = append(outbound, h.synthesizeGrant(convID, res.NewHolder, h.now(), conversants, roles))
			}

		case ev.EventType == envelope.EventInvite:
			if ev.To != nil && ev.To.SpeakerURI != "" {
				h.convs.addConversant(convID, ev.To.SpeakerURI)
			}

		case ev.EventType == envelope.EventUninvite:
			if ev.To != nil && ev.To.SpeakerURI != "" {
				h.convs.removeConversant(convID, ev.To.SpeakerURI)
			}

		default:
			// grantFloor/revokeFloor from an agent, utterance, context,
			// acceptInvite/declineInvite/bye, getManifests/publishManifests:
			// no Hub state change, pass through to the Router below
			// (spec 4.3 step 2).
		}
	}

	var deliveries []router.Outcome
	deliveries = append(deliveries, h.router.Route(ctx, env, env.Sender.SpeakerURI)...)
	for _, out := range outbound {
		deliveries = append(deliveries, h.router.Route(ctx, out, h.cfg.HubSpeakerURI)...)
	}

	return &Result{Outbound: outbound, Deliveries: deliveries, ControllerOutcomes: controllerOutcomes}
}

// Tick invokes Controller.CheckTimeouts and turns any fired timeouts
// into revokeFloor (and, on promotion, grantFloor) envelopes delivered
// through the Router (spec 4.3, 5, 8.2 scenario S5).
func (h *Hub) Tick(ctx context.Context) []*envelope.Envelope {
	fired := h.controller.CheckTimeouts(h.now())
	var outbound []*envelope.Envelope

	for _, tr := range fired {
		conversants, roles := h.convs.snapshot(tr.ConversationID)
		floorGranted := floorGrantedList(tr.Result.NewHolder, tr.Result.NewHolder != "")

		revoke := h.synthesizeRevoke(tr.ConversationID, tr.Result.PrevHolder, floor.ReasonTimeout, conversants, roles, floorGranted)
		outbound = append(outbound, revoke)
		h.router.Route(ctx, revoke, h.cfg.HubSpeakerURI)

		if tr.Result.NewHolder != "" {
			grant := h.synthesizeGrant(tr.ConversationID, tr.Result.NewHolder, h.now(), conversants, roles)
			outbound = append(outbound, grant)
			h.router.Route(ctx, grant, h.cfg.HubSpeakerURI)
		}
	}

	return outbound
}

// DiagnosticID returns a fresh correlation id an embedder can attach to
// logs or traces for one ProcessEnvelope call; the Hub itself does not
// persist or require it.
func DiagnosticID() string {
	return uuid.NewString()
}

func intParam(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// Package floorhub is the embedding-facing façade over the Floor
// Manager core (spec 6.4). It wires internal/hub, internal/floor, and
// internal/router behind a small API surface an embedding application
// (an HTTP/WebSocket gateway, a CLI, a test harness) can construct and
// drive without reaching into internal packages — the same role
// public/orchestrator.EmbeddedOrchestrator plays for cellorg.
package floorhub

import (
	"context"
	"time"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/floor"
	"github.com/openfloor-hub/floorhub/internal/hub"
	"github.com/openfloor-hub/floorhub/internal/hubconfig"
	"github.com/openfloor-hub/floorhub/internal/hublog"
	"github.com/openfloor-hub/floorhub/internal/router"
)

// Config is the embedder-facing construction record (spec 6.1).
type Config struct {
	HubSpeakerURI           string
	SupportedSchemaVersions []string
	MaxQueueDepth           int
	DefaultGrantTimeout     time.Duration
	TickInterval            time.Duration
	EmitWrappedEnvelopes    bool
	Debug                   bool
	// Lanes sets the number of per-conversation worker lanes (spec 5).
	// Zero defaults to 1.
	Lanes int
	// PendingDeliveryBuffer bounds the Router's optional per-recipient
	// buffer-until-registered behavior (spec 9). Zero disables it.
	PendingDeliveryBuffer int
}

// Handler is re-exported so embedders never need to import
// internal/router directly.
type Handler = router.Handler

// Result is re-exported from internal/hub.
type Result = hub.Result

// Request is re-exported from internal/floor, for embedders inspecting
// Queue().
type Request = floor.Request

// Manager is the constructed, ready-to-drive Floor Manager.
type Manager struct {
	hub         *hub.Hub
	tickEvery   time.Duration
	tickCancel  context.CancelFunc
	emitWrapped bool
}

// New constructs a Manager from cfg, applying spec 6.1's defaults for
// anything left zero-valued.
func New(cfg Config) *Manager {
	if cfg.HubSpeakerURI == "" {
		cfg.HubSpeakerURI = "urn:floorhub:hub"
	}
	if len(cfg.SupportedSchemaVersions) == 0 {
		cfg.SupportedSchemaVersions = []string{envelope.SchemaVersion}
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 128
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}

	versions := make(map[string]bool, len(cfg.SupportedSchemaVersions))
	for _, v := range cfg.SupportedSchemaVersions {
		versions[v] = true
	}

	logger := hublog.Nop()
	if cfg.Debug {
		logger = hublog.New(nil, "floorhub ", true)
	}

	h := hub.New(hub.Config{
		HubSpeakerURI:         cfg.HubSpeakerURI,
		SupportedVersions:     versions,
		MaxQueueDepth:         cfg.MaxQueueDepth,
		DefaultGrantTimeout:   cfg.DefaultGrantTimeout,
		EmitWrappedEnvelopes:  cfg.EmitWrappedEnvelopes,
		Lanes:                 cfg.Lanes,
		PendingDeliveryBuffer: cfg.PendingDeliveryBuffer,
	}, hub.WithLogger(logger))

	return &Manager{hub: h, tickEvery: cfg.TickInterval, emitWrapped: cfg.EmitWrappedEnvelopes}
}

// NewFromFile loads a YAML configuration file via hubconfig and
// constructs a Manager from it.
func NewFromFile(path string) (*Manager, error) {
	raw, err := hubconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return New(Config{
		HubSpeakerURI:           raw.HubSpeakerURI,
		SupportedSchemaVersions: raw.SupportedSchemaVersions,
		MaxQueueDepth:           raw.MaxQueueDepth,
		DefaultGrantTimeout:     raw.GrantTimeout(),
		TickInterval:            raw.TickInterval(),
		EmitWrappedEnvelopes:    raw.EmitWrappedEnvelopes,
		PendingDeliveryBuffer:   raw.PendingDeliveryBuffer,
		Debug:                  raw.Debug,
	}), nil
}

// DiagnosticID returns a fresh correlation id an embedder can attach to
// logs for one ProcessEnvelope call. The Manager itself never requires
// or persists it.
func DiagnosticID() string {
	return hub.DiagnosticID()
}

// ProcessEnvelope is the Manager's central operation (spec 4.3, 6.4).
func (m *Manager) ProcessEnvelope(ctx context.Context, raw []byte) (*Result, error) {
	return m.hub.ProcessEnvelope(ctx, raw)
}

// RegisterRoute binds speakerURI to handler.
func (m *Manager) RegisterRoute(speakerURI string, handler Handler) {
	m.hub.RegisterRoute(speakerURI, handler)
}

// UnregisterRoute removes speakerURI's binding.
func (m *Manager) UnregisterRoute(speakerURI string) {
	m.hub.UnregisterRoute(speakerURI)
}

// EncodeOutbound serializes one outbound envelope (as produced by
// ProcessEnvelope or Tick) to wire JSON, honoring the Manager's
// EmitWrappedEnvelopes setting (spec 9's open question on the
// "openFloor" wrapper key).
func (m *Manager) EncodeOutbound(env *envelope.Envelope) ([]byte, error) {
	return envelope.Encode(env, envelope.EncodeOptions{EmitWrapped: m.emitWrapped})
}

// Tick runs one timeout sweep (spec 4.3, 5). Embedders that don't call
// StartTicking are expected to call this themselves at TickInterval
// cadence.
func (m *Manager) Tick(ctx context.Context) []*envelope.Envelope {
	return m.hub.Tick(ctx)
}

// StartTicking spawns a goroutine that calls Tick on the Manager's
// configured TickInterval until ctx is done. The core never
// self-schedules (spec 6.1); this is the optional convenience an
// embedder can opt into instead of driving Tick itself.
func (m *Manager) StartTicking(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.tickCancel = cancel

	go func() {
		ticker := time.NewTicker(m.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.hub.Tick(ctx)
			}
		}
	}()
}

// Holder returns the current floor holder for conv, if any.
func (m *Manager) Holder(conv string) (string, bool) {
	return m.hub.Holder(conv)
}

// Queue returns a snapshot of conv's pending floor requests, ordered per
// spec 8.1 invariant 2.
func (m *Manager) Queue(conv string) []Request {
	return m.hub.Queue(conv)
}

// Conversation returns conv's locally known metadata.
func (m *Manager) Conversation(conv string) envelope.Conversation {
	return m.hub.Conversation(conv)
}

// ConversationIDs returns every conversation id the Manager currently
// holds metadata for. A persistence adapter (e.g. cmd/floorhubd's
// --state-dir support) uses this to enumerate what to snapshot; the
// Manager itself never persists anything.
func (m *Manager) ConversationIDs() []string {
	return m.hub.ConversationIDs()
}

// RestoreConversation seeds conv's metadata, floor holder, and pending
// queue before any envelope has touched it — the counterpart a
// persistence adapter calls at startup to replay a saved snapshot (spec
// 9's persistence collaborator).
func (m *Manager) RestoreConversation(conv string, conversants []envelope.Conversant, roles map[string][]string, holder string, queue []floor.Request) {
	m.hub.RestoreConversation(conv, conversants, roles, holder, queue)
}

// Close stops any running ticker goroutine and the Hub's internal
// worker lanes.
func (m *Manager) Close() {
	if m.tickCancel != nil {
		m.tickCancel()
	}
	m.hub.Close()
}

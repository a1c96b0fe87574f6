// Command floorhubd is a minimal embedding demo for the Floor Manager
// core: it loads a Hub configuration, optionally attaches a Badger-backed
// persistence adapter, registers a logging stand-in route for every
// speaker URI it is told about on the command line, and feeds it
// newline-delimited envelope JSON from stdin until EOF or a shutdown
// signal.
//
// Transport (HTTP, WebSocket, a message broker) is deliberately not this
// command's job — spec.md's own non-goals rule that out for the core,
// and this binary exists only to exercise public/floorhub and
// public/floorstore end to end, the way cmd/orchestrator exercises
// cellorg's broker and deployer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/public/floorhub"
	"github.com/openfloor-hub/floorhub/public/floorstore"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to a hub YAML config file; if empty, built-in defaults are used")
		stateDir   = flag.String("state-dir", "", "directory for the Badger-backed conversation store; empty disables persistence")
		routes     = flag.String("routes", "", "comma-separated speaker URIs to register a logging-only delivery route for")
	)
	flag.Parse()

	mgr, source, err := loadManager(*configFile)
	if err != nil {
		log.Fatalf("floorhubd: %v", err)
	}
	defer mgr.Close()
	log.Printf("floorhubd: started using %s", source)

	var store floorstore.Store
	if *stateDir != "" {
		bs, err := floorstore.NewBadgerStore(floorstore.DefaultConfig(*stateDir))
		if err != nil {
			log.Fatalf("floorhubd: failed to open state store at %s: %v", *stateDir, err)
		}
		defer bs.Close()
		store = bs
		restoreConversations(mgr, store)
	}

	for _, uri := range splitNonEmpty(*routes) {
		uri := uri
		mgr.RegisterRoute(uri, func(ctx context.Context, env *envelope.Envelope) error {
			out, err := mgr.EncodeOutbound(env)
			if err != nil {
				return err
			}
			log.Printf("floorhubd: -> %s: %s", uri, out)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.StartTicking(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readEnvelopes(ctx, mgr, os.Stdin)
	}()

	select {
	case <-sigCh:
		log.Printf("floorhubd: received shutdown signal")
	case <-done:
		log.Printf("floorhubd: stdin closed")
	}

	cancel()

	if store != nil {
		snapshotConversations(mgr, store)
	}
}

// loadManager constructs a Manager, preferring an explicit --config path,
// falling back to built-in defaults, mirroring the priority order the
// teacher's orchestrator main() uses for its own config file.
func loadManager(configFile string) (*floorhub.Manager, string, error) {
	if configFile != "" {
		mgr, err := floorhub.NewFromFile(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
		return mgr, fmt.Sprintf("config file: %s", configFile), nil
	}
	return floorhub.New(floorhub.Config{}), "built-in defaults", nil
}

// readEnvelopes feeds stdin to mgr one line at a time; each line is
// expected to be one complete OFP envelope (spec 6.2's wire format).
func readEnvelopes(ctx context.Context, mgr *floorhub.Manager, r *os.File) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		diagID := floorhub.DiagnosticID()
		res, err := mgr.ProcessEnvelope(ctx, []byte(line))
		if err != nil {
			log.Printf("floorhubd: [%s] rejected envelope: %v", diagID, err)
			continue
		}
		for _, d := range res.Deliveries {
			if d.Unknown {
				log.Printf("floorhubd: [%s] no route for %q (event %d)", diagID, d.Destination, d.EventIndex)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("floorhubd: stdin read error: %v", err)
	}
}

// restoreConversations replays every snapshot store holds into mgr
// before any envelope is processed.
func restoreConversations(mgr *floorhub.Manager, store floorstore.Store) {
	ids, err := store.List()
	if err != nil {
		log.Printf("floorhubd: failed to list saved conversations: %v", err)
		return
	}
	for _, id := range ids {
		snap, err := store.Load(id)
		if err != nil {
			log.Printf("floorhubd: failed to load snapshot for %q: %v", id, err)
			continue
		}
		mgr.RestoreConversation(id, snap.Conversants, snap.AssignedFloorRoles, snap.Holder, snap.Queue)
		log.Printf("floorhubd: restored conversation %q (holder=%q, queued=%d)", id, snap.Holder, len(snap.Queue))
	}
}

// snapshotConversations persists every conversation mgr currently knows
// about into store, run once at shutdown. A long-running deployment
// would call this periodically instead; this demo keeps it simple.
func snapshotConversations(mgr *floorhub.Manager, store floorstore.Store) {
	for _, id := range mgr.ConversationIDs() {
		conv := mgr.Conversation(id)
		holder := ""
		if len(conv.FloorGranted) > 0 {
			holder = conv.FloorGranted[0]
		}
		snap := floorstore.ConversationSnapshot{
			ID:                 id,
			Conversants:        conv.Conversants,
			AssignedFloorRoles: conv.AssignedFloorRoles,
			Holder:             holder,
			Queue:              mgr.Queue(id),
		}
		if err := store.Save(snap); err != nil {
			log.Printf("floorhubd: failed to save conversation %q: %v", id, err)
		}
	}
	log.Printf("floorhubd: snapshot complete")
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

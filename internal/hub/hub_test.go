package hub

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"mendbots/server/internal/sim"
	"mendbots/server/internal/world"
	"mendbots/server/logging"
	lifecyclelog "mendbots/server/logging/lifecycle"
)

var testKinds = []world.StructureKind{{Kind: "relay", MaxHealth: 500}}

type kindSource struct{}

func (kindSource) MaxHealth(kind string) (float64, bool) {
	if kind == "relay" {
		return 500, true
	}
	return 0, false
}

type eventLog struct {
	events []logging.Event
}

func (l *eventLog) publisher() logging.Publisher {
	return logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		l.events = append(l.events, event)
	})
}

func (l *eventLog) count(eventType logging.EventType) int {
	total := 0
	for _, event := range l.events {
		if event.Type == eventType {
			total++
		}
	}
	return total
}

func writeScenario(t *testing.T, scenario world.Scenario) string {
	t.Helper()
	data, err := json.Marshal(scenario)
	if err != nil {
		t.Fatalf("marshal scenario: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

// newTestHub builds a hub over a one-structure scenario world. The center
// region stays free of blocking tiles so owner spawns and movement never
// collide; wear is off unless the mutator turns it back on.
func newTestHub(t *testing.T, mutate func(*Config)) (*Hub, *eventLog) {
	t.Helper()
	health := 400.0
	scenario := world.Scenario{
		Obstacles:  []world.ScenarioObstacle{{Col: 5, Row: 5}},
		Structures: []world.ScenarioStructure{{ID: "relay-1", Kind: "relay", Col: 52, Row: 50, Health: &health}},
		Containers: []world.ScenarioContainer{{ID: "chest-1", Col: 40, Row: 40, Packs: 8}},
	}
	worldCfg := world.DefaultConfig()
	worldCfg.ScenarioPath = writeScenario(t, scenario)
	w, err := world.New(worldCfg, world.Deps{Kinds: testKinds})
	if err != nil {
		t.Fatalf("build world: %v", err)
	}

	log := &eventLog{}
	cfg := DefaultConfig()
	cfg.Wear = false
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewHub(cfg, Deps{World: w, Kinds: kindSource{}, Publisher: log.publisher()})
	if err != nil {
		t.Fatalf("build hub: %v", err)
	}
	return h, log
}

func TestJoinReturnsWorldSnapshot(t *testing.T) {
	h, log := newTestHub(t, nil)

	resp := h.Join()
	if resp.Ver != ProtocolVersion {
		t.Fatalf("expected protocol version %d, got %d", ProtocolVersion, resp.Ver)
	}
	if resp.ID != "owner-1" {
		t.Fatalf("expected first owner id owner-1, got %q", resp.ID)
	}
	if resp.Tick != 0 {
		t.Fatalf("expected join at tick 0, got %d", resp.Tick)
	}
	if len(resp.Owners) != 1 || resp.Owners[0].ID != "owner-1" {
		t.Fatalf("expected snapshot to contain the new owner, got %+v", resp.Owners)
	}
	if len(resp.Structures) != 1 || resp.Structures[0].ID != "relay-1" {
		t.Fatalf("unexpected structures %+v", resp.Structures)
	}
	if resp.Structures[0].Health != 400 {
		t.Fatalf("expected scenario health 400, got %.1f", resp.Structures[0].Health)
	}
	if len(resp.Obstacles) != 1 {
		t.Fatalf("expected one obstacle, got %d", len(resp.Obstacles))
	}
	if len(resp.Containers) != 1 || resp.Containers[0].ID != "chest-1" {
		t.Fatalf("unexpected containers %+v", resp.Containers)
	}
	if resp.Config.PackItem != "repair-pack" {
		t.Fatalf("expected config echoed in snapshot, got %+v", resp.Config)
	}
	if got := log.count(lifecyclelog.EventOwnerJoined); got != 1 {
		t.Fatalf("expected one owner_joined event, got %d", got)
	}

	second := h.Join()
	if second.ID != "owner-2" {
		t.Fatalf("expected sequential owner ids, got %q", second.ID)
	}
	if len(second.Owners) != 2 {
		t.Fatalf("expected both owners in second snapshot, got %d", len(second.Owners))
	}
}

func TestMoveIntentPersistsAcrossTicks(t *testing.T) {
	h, _ := newTestHub(t, nil)
	resp := h.Join()

	start, ok := h.world.ActorPosition(resp.ID)
	if !ok {
		t.Fatalf("owner missing from world")
	}

	if _, ok, reason := h.Move(resp.ID, 3, 4); !ok {
		t.Fatalf("move rejected: %s", reason)
	}
	h.Advance()

	pos, _ := h.world.ActorPosition(resp.ID)
	wantX := start.X + 0.3
	wantY := start.Y + 0.4
	if math.Abs(pos.X-wantX) > 1e-9 || math.Abs(pos.Y-wantY) > 1e-9 {
		t.Fatalf("expected normalized step to (%.3f, %.3f), got (%.3f, %.3f)", wantX, wantY, pos.X, pos.Y)
	}

	// No new command: the standing intent keeps the owner walking.
	h.Advance()
	pos, _ = h.world.ActorPosition(resp.ID)
	if math.Abs(pos.X-(start.X+0.6)) > 1e-9 {
		t.Fatalf("expected intent to persist, got x=%.3f", pos.X)
	}

	if _, ok, reason := h.Move(resp.ID, 0, 0); !ok {
		t.Fatalf("stop rejected: %s", reason)
	}
	h.Advance()
	stopped, _ := h.world.ActorPosition(resp.ID)
	h.Advance()
	pos, _ = h.world.ActorPosition(resp.ID)
	if pos != stopped {
		t.Fatalf("expected owner parked after zero intent, got %+v then %+v", stopped, pos)
	}
}

func TestToggleBotDeploysAndRecalls(t *testing.T) {
	h, log := newTestHub(t, nil)
	resp := h.Join()

	if _, ok, reason := h.ToggleBot(resp.ID); !ok {
		t.Fatalf("toggle rejected: %s", reason)
	}
	h.Advance()

	if _, ok := h.BotStatus(resp.ID); !ok {
		t.Fatalf("expected live bot session after toggle")
	}
	if got := len(h.world.Bots()); got != 1 {
		t.Fatalf("expected one bot actor, got %d", got)
	}
	if got := log.count(lifecyclelog.EventBotDeployed); got != 1 {
		t.Fatalf("expected one bot_deployed event, got %d", got)
	}

	if _, ok, reason := h.ToggleBot(resp.ID); !ok {
		t.Fatalf("second toggle rejected: %s", reason)
	}
	h.Advance()

	if _, ok := h.BotStatus(resp.ID); ok {
		t.Fatalf("expected session cleared after recall")
	}
	if got := len(h.world.Bots()); got != 0 {
		t.Fatalf("expected bot actor removed, got %d", got)
	}
	if got := log.count(lifecyclelog.EventBotRecalled); got != 1 {
		t.Fatalf("expected one bot_recalled event, got %d", got)
	}
}

func TestDisconnectRecallsBotAndRemovesOwner(t *testing.T) {
	h, log := newTestHub(t, nil)
	resp := h.Join()
	h.ToggleBot(resp.ID)
	h.Advance()

	h.Disconnect(resp.ID)

	if _, ok := h.world.Owner(resp.ID); ok {
		t.Fatalf("expected owner removed from world")
	}
	if got := len(h.world.Bots()); got != 0 {
		t.Fatalf("expected bot recalled on disconnect, got %d", got)
	}
	if got := log.count(lifecyclelog.EventOwnerLeft); got != 1 {
		t.Fatalf("expected one owner_left event, got %d", got)
	}
	if got := log.count(lifecyclelog.EventBotRecalled); got != 1 {
		t.Fatalf("expected one bot_recalled event, got %d", got)
	}

	// A second disconnect finds nothing to do.
	h.Disconnect(resp.ID)
	if got := log.count(lifecyclelog.EventOwnerLeft); got != 1 {
		t.Fatalf("expected duplicate disconnect to be silent, got %d owner_left events", got)
	}
}

func TestWearTaskDamagesStructures(t *testing.T) {
	h, _ := newTestHub(t, func(cfg *Config) {
		cfg.Wear = true
		cfg.WearEvery = 1
		cfg.WearAmount = 5
	})

	for i := 0; i < 3; i++ {
		h.Advance()
	}

	structure, ok := h.world.StructureByID("relay-1")
	if !ok {
		t.Fatalf("structure missing")
	}
	if structure.Health != 385 {
		t.Fatalf("expected three wear ticks to leave health 385, got %.1f", structure.Health)
	}
}

func TestDiagnosticsSnapshotReportsSessions(t *testing.T) {
	h, _ := newTestHub(t, nil)
	resp := h.Join()
	h.ToggleBot(resp.ID)
	h.Advance()
	h.Advance()

	diag := h.DiagnosticsSnapshot()
	if diag.Ver != ProtocolVersion {
		t.Fatalf("expected protocol version %d, got %d", ProtocolVersion, diag.Ver)
	}
	if diag.Tick != 2 {
		t.Fatalf("expected tick 2, got %d", diag.Tick)
	}
	if len(diag.Owners) != 1 {
		t.Fatalf("expected one owner entry, got %+v", diag.Owners)
	}
	entry := diag.Owners[0]
	if entry.ID != resp.ID || entry.Subscribed || !entry.BotActive {
		t.Fatalf("unexpected owner diagnostics %+v", entry)
	}
	if len(diag.BotStatus) != 1 {
		t.Fatalf("expected one bot status, got %+v", diag.BotStatus)
	}
	if diag.PendingCommands != 0 {
		t.Fatalf("expected drained queue, got %d pending", diag.PendingCommands)
	}
	if got := diag.Metrics.Counters["sim_ticks_total"]; got != 2 {
		t.Fatalf("expected tick counter 2, got %d", got)
	}
}

func TestSubscribeRequiresKnownOwner(t *testing.T) {
	h, _ := newTestHub(t, nil)
	if _, ok := h.Subscribe("ghost", nil); ok {
		t.Fatalf("expected subscription for unknown owner to be rejected")
	}
}

func TestCommandsRejectUnknownOwner(t *testing.T) {
	h, _ := newTestHub(t, nil)

	if _, ok, reason := h.Move("ghost", 1, 0); ok || reason != sim.CommandRejectUnknownActor {
		t.Fatalf("expected unknown_actor rejection, got ok=%v reason=%q", ok, reason)
	}
	if _, ok, reason := h.ToggleBot("ghost"); ok || reason != sim.CommandRejectUnknownActor {
		t.Fatalf("expected unknown_actor rejection, got ok=%v reason=%q", ok, reason)
	}

	resp := h.Join()
	h.Advance()
	cmd, ok, _ := h.Move(resp.ID, 1, 0)
	if !ok {
		t.Fatalf("expected move from known owner to queue")
	}
	if cmd.ActorID != resp.ID || cmd.OriginTick != 1 {
		t.Fatalf("unexpected stamped command %+v", cmd)
	}
}

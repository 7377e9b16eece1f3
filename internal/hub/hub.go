// Package hub coordinates the live simulation. It owns the world model,
// the bot controller, and the tick scheduler; applies queued client
// commands; and fans state snapshots out to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"mendbots/server/internal/bot"
	"mendbots/server/internal/sim"
	state "mendbots/server/internal/state"
	"mendbots/server/internal/telemetry"
	"mendbots/server/internal/world"
	"mendbots/server/logging"
	lifecyclelog "mendbots/server/logging/lifecycle"
	networklog "mendbots/server/logging/network"
)

// Config tunes movement, scheduling cadences, and the embedded bot and
// scheduler configuration.
type Config struct {
	// MoveSpeed is how far an owner travels per tick at full intent.
	MoveSpeed float64
	// PlanMargin widens the path search window around start and goal
	// tiles when bots plan routes.
	PlanMargin int
	// BotEvery is the tick cadence of bot controller updates.
	BotEvery uint64

	// Wear enables periodic random structure damage so repair crews keep
	// finding work in long-running worlds.
	Wear       bool
	WearEvery  uint64
	WearAmount float64

	// BroadcastEvery is the tick cadence of state broadcasts.
	BroadcastEvery uint64

	Bot bot.Config
	Sim sim.Config
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:      0.5,
		PlanMargin:     6,
		BotEvery:       2,
		Wear:           true,
		WearEvery:      25,
		WearAmount:     4,
		BroadcastEvery: 1,
		Bot:            bot.DefaultConfig(),
	}
}

func (cfg Config) normalized() Config {
	defaults := DefaultConfig()
	if cfg.MoveSpeed <= 0 {
		cfg.MoveSpeed = defaults.MoveSpeed
	}
	if cfg.PlanMargin <= 0 {
		cfg.PlanMargin = defaults.PlanMargin
	}
	if cfg.BotEvery < 1 {
		cfg.BotEvery = defaults.BotEvery
	}
	if cfg.Wear {
		if cfg.WearEvery < 1 {
			cfg.WearEvery = defaults.WearEvery
		}
		if cfg.WearAmount <= 0 {
			cfg.WearAmount = defaults.WearAmount
		}
	}
	if cfg.BroadcastEvery < 1 {
		cfg.BroadcastEvery = defaults.BroadcastEvery
	}
	return cfg
}

// Deps bundles the runtime collaborators the hub wires together. World is
// required; everything else degrades to a quiet default.
type Deps struct {
	World     *world.World
	Kinds     bot.MaxHealthSource
	Publisher logging.Publisher
	Metrics   *logging.Metrics
	Logger    telemetry.Logger
	Clock     logging.Clock
}

// Hub serializes all world access behind one mutex, the same way the
// simulation tasks do. Command enqueueing stays lock-free relative to the
// world; the scheduler buffers commands until the next drain.
type Hub struct {
	cfg   Config
	world *world.World
	bots  *bot.Controller
	sched *sim.Scheduler

	publisher logging.Publisher
	metrics   *logging.Metrics
	clock     logging.Clock

	mu          sync.Mutex
	subscribers map[string]*subscriber

	nextID     atomic.Uint64
	sessionSeq atomic.Uint64
	wearRNG    *rand.Rand
}

// NewHub wires the world, bot controller, and scheduler together and
// registers the simulation tasks in their execution order.
func NewHub(cfg Config, deps Deps) (*Hub, error) {
	if deps.World == nil {
		return nil, errors.New("hub: world model required")
	}
	cfg = cfg.normalized()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = &logging.Metrics{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	adapter := worldAdapter{world: deps.World, margin: cfg.PlanMargin}

	botCfg := cfg.Bot
	if botCfg.PackItem == "" {
		botCfg.PackItem = deps.World.PackItem()
	}
	controller := bot.NewController(botCfg, bot.Deps{
		World:     adapter,
		Planner:   adapter,
		Mover:     adapter,
		Supplies:  adapter,
		Spawner:   adapter,
		MaxHealth: deps.Kinds,
		Publisher: publisher,
	})

	scheduler := sim.NewScheduler(cfg.Sim, sim.Deps{
		Logger:    deps.Logger,
		Metrics:   telemetry.WrapMetrics(metrics),
		Clock:     clock,
		Publisher: publisher,
	})

	h := &Hub{
		cfg:         cfg,
		world:       deps.World,
		bots:        controller,
		sched:       scheduler,
		publisher:   publisher,
		metrics:     metrics,
		clock:       clock,
		subscribers: make(map[string]*subscriber),
		wearRNG:     deps.World.SubsystemRNG("wear"),
	}

	tasks := []sim.Task{
		{Name: "commands", Every: 1, Run: h.runCommands},
		{Name: "movement", Every: 1, Run: h.runMovement},
		{Name: "bots", Every: cfg.BotEvery, Run: h.runBots},
	}
	if cfg.Wear {
		tasks = append(tasks, sim.Task{Name: "wear", Every: cfg.WearEvery, Run: h.runWear})
	}
	tasks = append(tasks, sim.Task{Name: "broadcast", Every: cfg.BroadcastEvery, Run: h.runBroadcast})
	for _, task := range tasks {
		if err := h.sched.Register(task); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Run drives the scheduler's ticker loop until stop closes.
func (h *Hub) Run(stop <-chan struct{}) {
	h.sched.Run(stop)
}

// Advance executes one tick synchronously. Tests drive the hub with this
// instead of the wall-clock loop.
func (h *Hub) Advance() uint64 {
	return h.sched.Advance()
}

// Tick reports the last completed tick.
func (h *Hub) Tick() uint64 {
	return h.sched.Tick()
}

// TickRate reports the ticks-per-second the simulation loop runs at.
func (h *Hub) TickRate() int {
	return h.sched.TickRate()
}

// Join admits a new owner and returns the snapshot its client needs to
// render the world. The new owner reaches everyone else on the next
// broadcast, which Join kicks off immediately.
func (h *Hub) Join() JoinResponse {
	id := fmt.Sprintf("owner-%d", h.nextID.Add(1))
	tick := h.sched.Tick()

	h.mu.Lock()
	owner := h.world.AddOwner(id)
	pos := owner.Pos
	resp := JoinResponse{
		Ver:        ProtocolVersion,
		ID:         id,
		Tick:       tick,
		Owners:     h.world.Owners(),
		Bots:       h.world.Bots(),
		Structures: h.world.Structures(),
		Obstacles:  h.world.Obstacles(),
		Containers: h.world.Containers(),
		BotStatus:  h.bots.Statuses(),
		Config:     h.world.Config(),
	}
	h.mu.Unlock()

	lifecyclelog.OwnerJoined(context.Background(), h.publisher, tick,
		logging.EntityRef{ID: id, Kind: logging.EntityKindOwner},
		lifecyclelog.OwnerJoinedPayload{SpawnX: pos.X, SpawnY: pos.Y}, nil)

	go h.broadcastState(tick)
	return resp
}

// Subscribe attaches a websocket connection to an owner and returns the
// write handle the read loop replies through. A second subscription
// replaces the first; the stale socket is closed so the old reader
// unblocks.
func (h *Hub) Subscribe(ownerID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	if _, ok := h.world.Owner(ownerID); !ok {
		h.mu.Unlock()
		return nil, false
	}
	previous := h.subscribers[ownerID]
	sub := &subscriber{conn: conn, session: h.sessionSeq.Add(1), lastSeen: h.clock.Now()}
	h.subscribers[ownerID] = sub
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	networklog.ClientAttached(context.Background(), h.publisher, h.sched.Tick(),
		logging.EntityRef{ID: ownerID, Kind: logging.EntityKindOwner},
		networklog.AttachPayload{Replaced: previous != nil}, nil)
	go h.broadcastState(h.sched.Tick())
	return sub, true
}

// MarkSeen records inbound traffic from an owner's socket for the
// diagnostics view.
func (h *Hub) MarkSeen(ownerID string) {
	h.mu.Lock()
	if sub, ok := h.subscribers[ownerID]; ok {
		sub.lastSeen = h.clock.Now()
	}
	h.mu.Unlock()
}

// Disconnect removes the owner from the world and recalls its bot. Safe
// to call twice; the second call is a no-op.
func (h *Hub) Disconnect(ownerID string) {
	h.disconnect(ownerID, 0)
}

// DisconnectSession is Disconnect for session read loops. The teardown
// only applies while sessionID is still the registered subscription, so
// a loop whose socket was displaced by a reconnect cannot remove the
// owner out from under its replacement.
func (h *Hub) DisconnectSession(ownerID string, sessionID uint64) {
	h.disconnect(ownerID, sessionID)
}

// disconnect tears down the owner and its subscription. A sessionID of
// zero matches any subscription.
func (h *Hub) disconnect(ownerID string, sessionID uint64) {
	tick := h.sched.Tick()

	h.mu.Lock()
	sub := h.subscribers[ownerID]
	if sessionID != 0 && (sub == nil || sub.session != sessionID) {
		h.mu.Unlock()
		return
	}
	_, known := h.world.Owner(ownerID)
	delete(h.subscribers, ownerID)
	if known {
		h.bots.Drop(ownerID, tick)
		h.world.RemoveOwner(ownerID)
	}
	h.mu.Unlock()

	if sub != nil {
		sub.close()
		networklog.ClientDropped(context.Background(), h.publisher, tick,
			logging.EntityRef{ID: ownerID, Kind: logging.EntityKindOwner},
			networklog.DropPayload{Reason: "closed"}, nil)
	}
	if !known {
		return
	}

	lifecyclelog.OwnerLeft(context.Background(), h.publisher, tick,
		logging.EntityRef{ID: ownerID, Kind: logging.EntityKindOwner},
		lifecyclelog.OwnerLeftPayload{Reason: "disconnect"}, nil)

	go h.broadcastState(tick)
}

// Move queues a movement intent for the owner. The returned command
// carries the origin tick clients echo in their acks; the reason names
// why the command was rejected and is empty on success.
func (h *Hub) Move(ownerID string, dx, dy float64) (sim.Command, bool, string) {
	return h.enqueue(sim.Command{
		ActorID: ownerID,
		Type:    sim.CommandMove,
		Move:    &sim.MoveCommand{DX: dx, DY: dy},
	})
}

// ToggleBot queues a deploy-or-recall request for the owner's bot.
func (h *Hub) ToggleBot(ownerID string) (sim.Command, bool, string) {
	return h.enqueue(sim.Command{
		ActorID: ownerID,
		Type:    sim.CommandToggleBot,
	})
}

// enqueue stamps origin metadata and stages the command. Commands from
// owners the world no longer tracks are rejected up front instead of
// rotting in the queue.
func (h *Hub) enqueue(cmd sim.Command) (sim.Command, bool, string) {
	h.mu.Lock()
	_, known := h.world.Owner(cmd.ActorID)
	h.mu.Unlock()
	if !known {
		return sim.Command{}, false, sim.CommandRejectUnknownActor
	}

	cmd.OriginTick = h.sched.Tick()
	cmd.IssuedAt = h.clock.Now()
	if ok, reason := h.sched.Enqueue(cmd); !ok {
		return sim.Command{}, false, reason
	}
	return cmd, true, ""
}

// BotStatus reports the owner's bot session, if one is active.
func (h *Hub) BotStatus(ownerID string) (bot.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bots.Status(ownerID)
}

// DiagnosticsSnapshot assembles the operator view: connection state per
// owner, live bot sessions, queue depth, and the metrics counters.
func (h *Hub) DiagnosticsSnapshot() DiagnosticsSnapshot {
	tick := h.sched.Tick()
	pending := h.sched.Pending()

	h.mu.Lock()
	owners := h.world.Owners()
	diag := DiagnosticsSnapshot{
		Ver:             ProtocolVersion,
		Tick:            tick,
		Owners:          make([]OwnerDiagnostics, 0, len(owners)),
		BotStatus:       h.bots.Statuses(),
		PendingCommands: pending,
		Metrics:         h.metrics.Snapshot(),
	}
	for _, owner := range owners {
		entry := OwnerDiagnostics{
			Ver:       ProtocolVersion,
			ID:        owner.ID,
			BotActive: h.bots.Enabled(owner.ID),
		}
		if sub, ok := h.subscribers[owner.ID]; ok {
			entry.Subscribed = true
			entry.LastSeen = sub.lastSeen.UnixMilli()
		}
		diag.Owners = append(diag.Owners, entry)
	}
	h.mu.Unlock()
	return diag
}

// runCommands drains the command buffer and applies each entry against
// the world. Unknown actors are dropped silently; the client may simply
// have disconnected between enqueue and drain.
func (h *Hub) runCommands(tick uint64) {
	commands := h.sched.DrainCommands()
	if len(commands) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cmd := range commands {
		switch cmd.Type {
		case sim.CommandMove:
			h.applyMove(cmd)
		case sim.CommandToggleBot:
			h.bots.Toggle(cmd.ActorID, tick)
		}
	}
}

func (h *Hub) applyMove(cmd sim.Command) {
	if cmd.Move == nil {
		return
	}
	owner, ok := h.world.Owner(cmd.ActorID)
	if !ok {
		return
	}
	dx, dy := cmd.Move.DX, cmd.Move.DY
	if length := math.Hypot(dx, dy); length > 1 {
		dx /= length
		dy /= length
	}
	owner.IntentX = dx
	owner.IntentY = dy
}

// runMovement advances every owner along its standing intent. A zeroed
// intent parks the owner until the next move command.
func (h *Hub) runMovement(uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, snap := range h.world.Owners() {
		owner, ok := h.world.Owner(snap.ID)
		if !ok || (owner.IntentX == 0 && owner.IntentY == 0) {
			continue
		}
		next := state.Vec2{
			X: owner.Pos.X + owner.IntentX*h.cfg.MoveSpeed,
			Y: owner.Pos.Y + owner.IntentY*h.cfg.MoveSpeed,
		}
		if h.world.TileBlocked(world.TileOf(next)) {
			continue
		}
		h.world.SetActorPosition(owner.ID, next)
	}
}

func (h *Hub) runBots(tick uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bots.Update(tick)
}

// runWear chips a random structure so the repair loop always has targets.
func (h *Hub) runWear(uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.world.RandomStructureID(h.wearRNG); ok {
		h.world.DamageStructure(id, h.cfg.WearAmount)
	}
}

func (h *Hub) runBroadcast(tick uint64) {
	h.broadcastState(tick)
}

// broadcastState marshals one frame and pushes it to every subscriber.
// A failed write disconnects that owner and triggers a fresh broadcast so
// the remaining clients see it leave.
func (h *Hub) broadcastState(tick uint64) {
	h.mu.Lock()
	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Tick:       tick,
		ServerTime: h.clock.Now().UnixMilli(),
		Owners:     h.world.Owners(),
		Bots:       h.world.Bots(),
		Structures: h.world.Structures(),
		Containers: h.world.Containers(),
		BotStatus:  h.bots.Statuses(),
		Config:     h.world.Config(),
	}
	targets := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		targets[id] = sub
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for id, sub := range targets {
		if err := sub.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.disconnect(id, sub.session)
		}
	}
}

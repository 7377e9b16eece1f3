package bot

import (
	"context"
	"sort"

	state "mendbots/server/internal/state"
	"mendbots/server/logging"
	lifecyclelog "mendbots/server/logging/lifecycle"
	navlog "mendbots/server/logging/navigation"
	repairlog "mendbots/server/logging/repair"
	supplylog "mendbots/server/logging/supply"
)

// Mode identifies the lifecycle state of an owner's service bot.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeFollow Mode = "follow"
	ModeRepair Mode = "repair"
)

const healthEpsilon = 1e-6

// Config tunes the repair controller.
type Config struct {
	// PatrolRadius is the damaged-structure scan radius around the owner.
	PatrolRadius float64
	// RepairDistance is how close the bot must stand to service a target.
	RepairDistance float64
	// RepairRadius is the area serviced around a reached target.
	RepairRadius float64
	// FollowOffset is the idle station relative to the owner.
	FollowOffset Vec2
	// PackItem is the consumable the supply pool spends.
	PackItem state.ItemType
	// PackCapacity is the health-point budget per pack.
	PackCapacity float64
	// Follow tunes the path follower.
	Follow FollowConfig
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{
		PatrolRadius:   16,
		RepairDistance: 1.5,
		RepairRadius:   2.5,
		FollowOffset:   Vec2{X: 1.5, Y: 1.5},
		PackItem:       state.ItemTypeRepairPack,
		PackCapacity:   DefaultPackCapacity,
		Follow:         DefaultFollowConfig(),
	}
}

func (cfg Config) normalized() Config {
	defaults := DefaultConfig()
	if cfg.PatrolRadius <= 0 {
		cfg.PatrolRadius = defaults.PatrolRadius
	}
	if cfg.RepairDistance <= 0 {
		cfg.RepairDistance = defaults.RepairDistance
	}
	if cfg.RepairRadius < cfg.RepairDistance {
		cfg.RepairRadius = cfg.RepairDistance
	}
	if cfg.PackItem == "" {
		cfg.PackItem = defaults.PackItem
	}
	if cfg.PackCapacity <= 0 {
		cfg.PackCapacity = defaults.PackCapacity
	}
	cfg.Follow = cfg.Follow.normalized()
	return cfg
}

// Session owns the transient caches for one owner's bot. All fields reset
// when the bot is toggled off.
type Session struct {
	OwnerID    string
	BotID      string
	Mode       Mode
	Follow     state.FollowState
	Route      []string
	RouteIndex int
	Pool       *SupplyPool

	routeSource []string
	maxHealth   *maxHealthResolver
}

// Status is a read-only projection of a session for diagnostics.
type Status struct {
	OwnerID      string  `json:"ownerId"`
	BotID        string  `json:"botId"`
	Mode         Mode    `json:"mode"`
	RouteTargets int     `json:"routeTargets"`
	PoolCapacity float64 `json:"poolCapacity"`
}

// Controller drives one service bot per owner through the follow/repair
// state machine. It owns the session registry; the scheduler invokes Update
// at a fixed cadence and everything runs within that call.
type Controller struct {
	cfg      Config
	deps     Deps
	sessions map[string]*Session
}

// NewController builds a controller with normalized configuration.
func NewController(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg:      cfg.normalized(),
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Toggle flips the owner's bot between off and deployed. A fresh deployment
// starts with empty caches; toggling off releases the bot actor and every
// transient cache with it. Returns whether a bot is deployed afterwards.
func (c *Controller) Toggle(ownerID string, tick uint64) bool {
	if c == nil || ownerID == "" {
		return false
	}
	if session, ok := c.sessions[ownerID]; ok {
		c.recall(session, tick, "toggled off")
		return false
	}
	if c.deps.Spawner == nil {
		return false
	}
	botID, spawn, ok := c.deps.Spawner.SpawnBot(ownerID)
	if !ok {
		return false
	}
	session := &Session{
		OwnerID:   ownerID,
		BotID:     botID,
		Mode:      ModeFollow,
		Pool:      NewSupplyPool(c.cfg.PackItem, c.cfg.PackCapacity),
		maxHealth: newMaxHealthResolver(c.deps.MaxHealth, c.deps.World),
	}
	c.sessions[ownerID] = session
	lifecyclelog.BotDeployed(context.Background(), c.deps.Publisher, tick, c.botRef(session),
		lifecyclelog.BotDeployedPayload{OwnerID: ownerID, SpawnX: spawn.X, SpawnY: spawn.Y}, nil)
	return true
}

// Drop tears down the owner's session, if any. Called when the owner leaves
// the world.
func (c *Controller) Drop(ownerID string, tick uint64) {
	if c == nil {
		return
	}
	if session, ok := c.sessions[ownerID]; ok {
		c.recall(session, tick, "owner left")
	}
}

// Enabled reports whether the owner currently has a bot deployed.
func (c *Controller) Enabled(ownerID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.sessions[ownerID]
	return ok
}

// Status returns the diagnostic projection for one owner.
func (c *Controller) Status(ownerID string) (Status, bool) {
	if c == nil {
		return Status{}, false
	}
	session, ok := c.sessions[ownerID]
	if !ok {
		return Status{}, false
	}
	return c.status(session), true
}

// Statuses returns every session's projection ordered by owner ID.
func (c *Controller) Statuses() []Status {
	if c == nil || len(c.sessions) == 0 {
		return nil
	}
	out := make([]Status, 0, len(c.sessions))
	for _, ownerID := range c.sortedOwners() {
		out = append(out, c.status(c.sessions[ownerID]))
	}
	return out
}

func (c *Controller) status(session *Session) Status {
	status := Status{
		OwnerID:      session.OwnerID,
		BotID:        session.BotID,
		Mode:         session.Mode,
		RouteTargets: len(session.Route),
	}
	if session.Pool != nil {
		status.PoolCapacity = session.Pool.Capacity
	}
	return status
}

// Update runs one scheduling cycle for every deployed bot. Sessions are
// visited in owner-ID order so identical worlds evolve identically.
func (c *Controller) Update(tick uint64) {
	if c == nil || c.deps.World == nil {
		return
	}
	for _, ownerID := range c.sortedOwners() {
		session, ok := c.sessions[ownerID]
		if !ok {
			continue
		}
		c.updateSession(session, tick)
	}
}

func (c *Controller) sortedOwners() []string {
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Controller) updateSession(session *Session, tick uint64) {
	ownerPos, ok := c.deps.World.ActorPosition(session.OwnerID)
	if !ok {
		c.recall(session, tick, "owner missing")
		return
	}
	botPos, ok := c.deps.World.ActorPosition(session.BotID)
	if !ok {
		c.recall(session, tick, "bot missing")
		return
	}

	damaged := c.deps.World.DamagedStructures(ownerPos, c.cfg.PatrolRadius, session.maxHealth.maxOf)
	if len(damaged) == 0 {
		c.follow(session, botPos, ownerPos, tick)
		return
	}
	c.repair(session, botPos, ownerPos, damaged, tick)
}

// follow stations the bot at a fixed offset from its owner and drops any
// repair route.
func (c *Controller) follow(session *Session, botPos, ownerPos Vec2, tick uint64) {
	session.Mode = ModeFollow
	c.clearRoute(session)
	station := Vec2{X: ownerPos.X + c.cfg.FollowOffset.X, Y: ownerPos.Y + c.cfg.FollowOffset.Y}
	c.steer(session, botPos, station, tick)
}

// repair steers the bot along its route and services the surrounding area
// once the current stop is reached.
func (c *Controller) repair(session *Session, botPos, ownerPos Vec2, damaged []StructureRef, tick uint64) {
	session.Mode = ModeRepair

	ids := make([]string, len(damaged))
	for i, target := range damaged {
		ids[i] = target.ID
	}
	if len(session.Route) == 0 || session.RouteIndex >= len(session.Route) || !equalIDs(session.routeSource, ids) {
		c.rebuildRoute(session, botPos, damaged, ids, tick)
	}

	// Skip stops repaired or lost since the route was sequenced.
	for session.RouteIndex < len(session.Route) && !c.stillDamaged(session, session.Route[session.RouteIndex]) {
		session.RouteIndex++
	}
	if session.RouteIndex >= len(session.Route) {
		c.rebuildRoute(session, botPos, damaged, ids, tick)
		if len(session.Route) == 0 {
			c.follow(session, botPos, ownerPos, tick)
			return
		}
	}

	target, ok := c.deps.World.Structure(session.Route[session.RouteIndex])
	if !ok {
		session.RouteIndex++
		return
	}

	if dist(botPos, target.Pos) <= c.cfg.RepairDistance {
		c.service(session, botPos, ownerPos, target, tick)
		return
	}
	c.steer(session, botPos, target.Pos, tick)
}

// service repairs every damaged structure around the reached stop, spending
// the owner's supply pool, then resequences the route and moves on.
func (c *Controller) service(session *Session, botPos, ownerPos Vec2, reached StructureRef, tick uint64) {
	cluster := c.deps.World.DamagedStructures(reached.Pos, c.cfg.RepairRadius, session.maxHealth.maxOf)
	for _, target := range cluster {
		ceiling := session.maxHealth.maxOf(target.Kind)
		if ceiling <= 0 {
			continue
		}
		deficit := ceiling - target.Health
		if deficit <= healthEpsilon {
			continue
		}

		receipt := session.Pool.Consume(deficit, session.OwnerID, ownerPos, c.deps.Supplies)
		if receipt.ContainerPacks > 0 || receipt.InventoryPacks > 0 {
			supplylog.PacksLoaded(context.Background(), c.deps.Publisher, tick, c.botRef(session),
				supplylog.PacksLoadedPayload{
					ContainerID:    receipt.ContainerID,
					ContainerPacks: receipt.ContainerPacks,
					InventoryPacks: receipt.InventoryPacks,
					CapacityAfter:  session.Pool.Capacity + receipt.Granted,
				}, nil)
		}
		if receipt.Granted > 0 {
			healthAfter := target.Health + receipt.Granted
			c.deps.World.SetStructureHealth(target.ID, healthAfter)
			repairlog.StructureRepaired(context.Background(), c.deps.Publisher, tick, c.botRef(session),
				repairlog.StructureRepairedPayload{
					StructureID: target.ID,
					Kind:        target.Kind,
					Amount:      receipt.Granted,
					HealthAfter: healthAfter,
				}, nil)
		}
		if receipt.Exhausted {
			supplylog.PoolExhausted(context.Background(), c.deps.Publisher, tick, c.botRef(session),
				supplylog.PoolExhaustedPayload{Requested: deficit}, nil)
		}
		if receipt.Granted+healthEpsilon < deficit {
			break
		}
	}

	damaged := c.deps.World.DamagedStructures(ownerPos, c.cfg.PatrolRadius, session.maxHealth.maxOf)
	if len(damaged) == 0 {
		c.clearRoute(session)
		return
	}
	ids := make([]string, len(damaged))
	for i, target := range damaged {
		ids[i] = target.ID
	}
	c.rebuildRoute(session, botPos, damaged, ids, tick)
	session.RouteIndex++
	if session.RouteIndex >= len(session.Route) {
		session.RouteIndex = 0
	}
}

func (c *Controller) rebuildRoute(session *Session, botPos Vec2, damaged []StructureRef, ids []string, tick uint64) {
	targets := make([]RouteTarget, len(damaged))
	for i, target := range damaged {
		targets[i] = RouteTarget{ID: target.ID, Pos: target.Pos}
	}
	session.Route = BuildRoute(targets, botPos)
	session.RouteIndex = 0
	session.routeSource = append([]string(nil), ids...)
	repairlog.RouteRebuilt(context.Background(), c.deps.Publisher, tick, c.botRef(session),
		repairlog.RouteRebuiltPayload{Targets: len(session.Route)}, nil)
}

func (c *Controller) clearRoute(session *Session) {
	session.Route = nil
	session.RouteIndex = 0
	session.routeSource = nil
}

// stillDamaged re-validates a route stop against live world state.
func (c *Controller) stillDamaged(session *Session, id string) bool {
	target, ok := c.deps.World.Structure(id)
	if !ok {
		return false
	}
	ceiling := session.maxHealth.maxOf(target.Kind)
	if ceiling <= 0 {
		return false
	}
	return target.Health+healthEpsilon < ceiling
}

func (c *Controller) steer(session *Session, botPos, target Vec2, tick uint64) {
	actor := &PathActor{ID: session.BotID, Pos: botPos, Follow: &session.Follow}
	if !FollowStep(actor, target, c.cfg.Follow, c.deps.Planner, c.deps.Mover) {
		navlog.PathFailed(context.Background(), c.deps.Publisher, tick, c.botRef(session),
			navlog.PathFailedPayload{FromX: botPos.X, FromY: botPos.Y, ToX: target.X, ToY: target.Y}, nil)
	}
}

func (c *Controller) recall(session *Session, tick uint64, reason string) {
	delete(c.sessions, session.OwnerID)
	if c.deps.Spawner != nil && session.BotID != "" {
		c.deps.Spawner.RemoveBot(session.BotID)
	}
	session.Follow.Clear()
	c.clearRoute(session)
	session.Mode = ModeOff
	lifecyclelog.BotRecalled(context.Background(), c.deps.Publisher, tick, c.botRef(session),
		lifecyclelog.BotRecalledPayload{OwnerID: session.OwnerID, Reason: reason}, nil)
}

func (c *Controller) botRef(session *Session) logging.EntityRef {
	return logging.EntityRef{ID: session.BotID, Kind: logging.EntityKindBot}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

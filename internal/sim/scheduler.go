package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mendbots/server/internal/telemetry"
	"mendbots/server/logging"
	simulationlog "mendbots/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectUnknownActor indicates the command named an actor the
	// world does not know.
	CommandRejectUnknownActor = "unknown_actor"
)

const (
	ticksMetricKey        = "sim_ticks_total"
	tickDurationMetricKey = "sim_tick_duration_micros"
	tickOverrunMetricKey  = "sim_tick_overrun_total"

	alarmRatioThreshold  = 3.0
	alarmStreakThreshold = 5
)

// Config tunes the command queue and the fixed-timestep loop.
type Config struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

func (c Config) normalized() Config {
	if c.TickRate <= 0 {
		c.TickRate = 15
	}
	if c.CatchupMaxTicks < 1 {
		c.CatchupMaxTicks = 1
	}
	if c.CommandCapacity < 1 {
		c.CommandCapacity = 256
	}
	if c.PerActorLimit < 0 {
		c.PerActorLimit = 0
	}
	if c.WarningStep < 0 {
		c.WarningStep = 0
	}
	return c
}

// Deps carries the collaborators the scheduler reports through.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}

// Task is a named unit of work driven on a fixed cadence. Every is measured
// in ticks; a task with Every == 3 runs on ticks 3, 6, 9 and so on.
type Task struct {
	Name  string
	Every uint64
	Run   func(tick uint64)
}

// Scheduler drives registered tasks on a shared tick counter and stages
// inbound commands for whichever task drains them.
type Scheduler struct {
	config Config
	deps   Deps
	buffer *CommandBuffer

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	mu            sync.Mutex
	tasks         []Task
	tick          uint64
	overrunStreak uint64
}

// NewScheduler constructs an empty scheduler. Tasks are registered before
// Run starts; registration order decides execution order within a tick.
func NewScheduler(cfg Config, deps Deps) *Scheduler {
	cfg = cfg.normalized()
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	return &Scheduler{
		config:        cfg,
		deps:          deps,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Register adds a named task. Duplicate names are rejected so diagnostics
// stay unambiguous.
func (s *Scheduler) Register(task Task) error {
	if s == nil {
		return fmt.Errorf("sim: scheduler is nil")
	}
	if task.Name == "" {
		return fmt.Errorf("sim: task needs a name")
	}
	if task.Run == nil {
		return fmt.Errorf("sim: task %q needs a run function", task.Name)
	}
	if task.Every < 1 {
		task.Every = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.Name == task.Name {
			return fmt.Errorf("sim: task %q already registered", task.Name)
		}
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Tick reports the last completed tick.
func (s *Scheduler) Tick() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// TickRate reports the normalized ticks-per-second the loop runs at.
func (s *Scheduler) TickRate() int {
	if s == nil {
		return 0
	}
	return s.config.TickRate
}

// TaskNames lists registered tasks in execution order.
func (s *Scheduler) TaskNames() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.tasks))
	for i, task := range s.tasks {
		names[i] = task.Name
	}
	return names
}

// Pending reports the number of staged commands.
func (s *Scheduler) Pending() int {
	if s == nil {
		return 0
	}
	return s.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. The string result names the rejection reason when staging fails.
func (s *Scheduler) Enqueue(cmd Command) (bool, string) {
	if s == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	s.queueMu.Lock()
	if s.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := s.perActorCount[cmd.ActorID]
		if count >= s.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = s.incrementDropLocked(cmd.ActorID)
		} else {
			s.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !s.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = s.incrementDropLocked(cmd.ActorID)
		} else if s.config.WarningStep > 0 {
			length := s.buffer.Len()
			if length >= s.config.WarningStep && length%s.config.WarningStep == 0 && s.deps.Logger != nil {
				s.deps.Logger.Printf("[backpressure] command queue depth=%d capacity=%d", length, s.buffer.Capacity())
			}
		}
	}
	s.queueMu.Unlock()
	if reason != "" {
		s.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// DrainCommands clears the staged queue in FIFO order and resets the
// per-actor throttle window.
func (s *Scheduler) DrainCommands() []Command {
	if s == nil {
		return nil
	}
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	commands := s.buffer.Drain()
	if len(s.perActorCount) > 0 {
		s.perActorCount = make(map[string]int)
	}
	return commands
}

// Advance executes a single tick and returns the tick number it ran. Tests
// and the loop share this path so cadence behaviour never diverges.
func (s *Scheduler) Advance() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	s.tick++
	tick := s.tick
	due := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if tick%task.Every == 0 {
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		task.Run(tick)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Add(ticksMetricKey, 1)
	}
	return tick
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (s *Scheduler) Run(stop <-chan struct{}) {
	if s == nil {
		return
	}
	budget := time.Second / time.Duration(s.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := s.deps.Clock
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := clock.Now()
			tick := s.Advance()
			duration := clock.Now().Sub(start)
			s.observeTickDuration(tick, duration, budget)
		}
	}
}

func (s *Scheduler) observeTickDuration(tick uint64, duration, budget time.Duration) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Store(tickDurationMetricKey, duration.Microseconds())
	}
	if duration <= budget {
		s.mu.Lock()
		s.overrunStreak = 0
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.overrunStreak++
	streak := s.overrunStreak
	s.mu.Unlock()

	ratio := float64(duration) / float64(budget)
	if s.deps.Metrics != nil {
		s.deps.Metrics.Add(tickOverrunMetricKey, 1)
	}
	simulationlog.TickBudgetOverrun(context.Background(), s.deps.Publisher, tick,
		simulationlog.TickBudgetOverrunPayload{
			DurationMillis: duration.Milliseconds(),
			BudgetMillis:   budget.Milliseconds(),
			Ratio:          ratio,
			Streak:         streak,
		}, nil)
	if ratio >= alarmRatioThreshold || streak >= alarmStreakThreshold {
		simulationlog.TickBudgetAlarm(context.Background(), s.deps.Publisher, tick,
			simulationlog.TickBudgetAlarmPayload{
				DurationMillis:  duration.Milliseconds(),
				BudgetMillis:    budget.Milliseconds(),
				Ratio:           ratio,
				Streak:          streak,
				ThresholdRatio:  alarmRatioThreshold,
				ThresholdStreak: alarmStreakThreshold,
			}, nil)
		s.mu.Lock()
		s.overrunStreak = 0
		s.mu.Unlock()
	}
}

func (s *Scheduler) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := s.dropCounts[actorID] + 1
	s.dropCounts[actorID] = count
	return count
}

func (s *Scheduler) reportDrop(reason string, cmd Command, count uint64) {
	if reason != CommandRejectQueueLimit && reason != CommandRejectQueueFull {
		return
	}
	// Log on power-of-two counts so a misbehaving client cannot flood the log.
	if count > 0 && count&(count-1) == 0 && s.deps.Logger != nil {
		s.deps.Logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			s.config.PerActorLimit,
		)
	}
}

// Ensure the ring buffer accepts the shared telemetry metrics surface.
var _ telemetryMetrics = (telemetry.Metrics)(nil)

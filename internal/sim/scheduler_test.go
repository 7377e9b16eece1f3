package sim

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"mendbots/server/internal/telemetry"
	"mendbots/server/logging"
	simulationlog "mendbots/server/logging/simulation"
)

func TestSchedulerRunsTasksOnCadence(t *testing.T) {
	sched := NewScheduler(Config{}, Deps{})

	var order []string
	record := func(name string) func(uint64) {
		return func(tick uint64) {
			order = append(order, fmt.Sprintf("%s@%d", name, tick))
		}
	}
	if err := sched.Register(Task{Name: "commands", Every: 1, Run: record("commands")}); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	if err := sched.Register(Task{Name: "bots", Every: 3, Run: record("bots")}); err != nil {
		t.Fatalf("register bots: %v", err)
	}

	for i := 0; i < 6; i++ {
		sched.Advance()
	}
	if sched.Tick() != 6 {
		t.Fatalf("tick = %d, want 6", sched.Tick())
	}

	want := []string{
		"commands@1", "commands@2",
		"commands@3", "bots@3",
		"commands@4", "commands@5",
		"commands@6", "bots@6",
	}
	if len(order) != len(want) {
		t.Fatalf("ran %d task invocations, want %d: %v", len(order), len(want), order)
	}
	for i, got := range order {
		if got != want[i] {
			t.Fatalf("invocation %d = %q, want %q (full order %v)", i, got, want[i], order)
		}
	}
}

func TestSchedulerRejectsBadTasks(t *testing.T) {
	sched := NewScheduler(Config{}, Deps{})

	if err := sched.Register(Task{Run: func(uint64) {}}); err == nil {
		t.Fatalf("expected error for unnamed task")
	}
	if err := sched.Register(Task{Name: "broadcast"}); err == nil {
		t.Fatalf("expected error for task without a run function")
	}
	if err := sched.Register(Task{Name: "wear", Run: func(uint64) {}}); err != nil {
		t.Fatalf("register wear: %v", err)
	}
	if err := sched.Register(Task{Name: "wear", Run: func(uint64) {}}); err == nil {
		t.Fatalf("expected error for duplicate task name")
	}
	if got := sched.TaskNames(); len(got) != 1 || got[0] != "wear" {
		t.Fatalf("unexpected task names: %v", got)
	}
}

func TestSchedulerThrottlesPerActor(t *testing.T) {
	var buf bytes.Buffer
	sched := NewScheduler(
		Config{PerActorLimit: 2, CommandCapacity: 8},
		Deps{Logger: telemetry.WrapLogger(log.New(&buf, "", 0))},
	)

	for i := 0; i < 2; i++ {
		if ok, reason := sched.Enqueue(Command{ActorID: "owner-1", Type: CommandMove}); !ok {
			t.Fatalf("enqueue %d rejected: %s", i, reason)
		}
	}
	ok, reason := sched.Enqueue(Command{ActorID: "owner-1", Type: CommandMove})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue_limit rejection, got ok=%v reason=%q", ok, reason)
	}
	if !strings.Contains(buf.String(), "[backpressure]") {
		t.Fatalf("expected a backpressure log line, got %q", buf.String())
	}
	if sched.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", sched.Pending())
	}

	// Draining resets the per-actor window.
	if got := len(sched.DrainCommands()); got != 2 {
		t.Fatalf("drained %d commands, want 2", got)
	}
	if ok, reason := sched.Enqueue(Command{ActorID: "owner-1", Type: CommandMove}); !ok {
		t.Fatalf("enqueue after drain rejected: %s", reason)
	}
}

func TestSchedulerReportsQueueFull(t *testing.T) {
	sched := NewScheduler(Config{CommandCapacity: 1}, Deps{})

	if ok, _ := sched.Enqueue(Command{ActorID: "owner-1"}); !ok {
		t.Fatalf("first enqueue should succeed")
	}
	ok, reason := sched.Enqueue(Command{ActorID: "owner-2"})
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full rejection, got ok=%v reason=%q", ok, reason)
	}
}

func TestSchedulerEscalatesBudgetOverruns(t *testing.T) {
	var events []logging.Event
	pub := logging.PublisherFunc(func(ctx context.Context, event logging.Event) {
		events = append(events, event)
	})
	sched := NewScheduler(Config{TickRate: 10}, Deps{Publisher: pub})

	budget := 100 * time.Millisecond
	sched.observeTickDuration(1, budget/2, budget)
	if len(events) != 0 {
		t.Fatalf("within-budget tick should stay quiet, got %v", events)
	}

	sched.observeTickDuration(2, budget*2, budget)
	if len(events) != 1 || events[0].Type != simulationlog.EventTickBudgetOverrun {
		t.Fatalf("expected a single overrun event, got %v", events)
	}
	payload := events[0].Payload.(simulationlog.TickBudgetOverrunPayload)
	if payload.Streak != 1 || payload.Ratio < 1.9 || payload.Ratio > 2.1 {
		t.Fatalf("unexpected overrun payload: %+v", payload)
	}

	// A severe breach raises the alarm immediately and resets the streak.
	events = events[:0]
	sched.observeTickDuration(3, budget*4, budget)
	if len(events) != 2 {
		t.Fatalf("expected overrun plus alarm, got %v", events)
	}
	if events[1].Type != simulationlog.EventTickBudgetAlarm {
		t.Fatalf("second event = %v, want alarm", events[1].Type)
	}

	// Recovery clears the streak so the next overrun starts over.
	events = events[:0]
	sched.observeTickDuration(4, budget/2, budget)
	sched.observeTickDuration(5, budget*2, budget)
	if len(events) != 1 {
		t.Fatalf("expected a fresh overrun only, got %v", events)
	}
	payload = events[0].Payload.(simulationlog.TickBudgetOverrunPayload)
	if payload.Streak != 1 {
		t.Fatalf("streak should restart at 1, got %d", payload.Streak)
	}
}

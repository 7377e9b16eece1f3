package bot

import (
	"math"
	"testing"

	state "mendbots/server/internal/state"
)

type recordMover struct {
	id        string
	positions []Vec2
}

func (m *recordMover) SetActorPosition(id string, pos Vec2) {
	m.id = id
	m.positions = append(m.positions, pos)
}

func staticPlanner(path []Vec2) PathPlanner {
	return PlannerFunc(func(start, goal Vec2) ([]Vec2, bool) {
		return append([]Vec2(nil), path...), true
	})
}

func TestFollowStepReusesCachedPath(t *testing.T) {
	actor := &PathActor{
		ID:  "bot-1",
		Pos: Vec2{X: 5, Y: 0},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 6, Y: 0}, {X: 10, Y: 0}},
			Index:  0,
			Target: Vec2{X: 10, Y: 0},
		},
	}
	planner := PlannerFunc(func(start, goal Vec2) ([]Vec2, bool) {
		t.Fatalf("unexpected replan for goal %+v", goal)
		return nil, false
	})

	// Requested target drifts within tolerance of the cached one.
	if !FollowStep(actor, Vec2{X: 10.3, Y: 0}, DefaultFollowConfig(), planner, nil) {
		t.Fatalf("expected step to succeed on cached path")
	}
	if got := actor.Pos; math.Abs(got.X-5.5) > 1e-9 || math.Abs(got.Y) > 1e-9 {
		t.Fatalf("unexpected position after step: %+v", got)
	}
}

func TestFollowStepReplansOnDrift(t *testing.T) {
	var planned int
	var plannedFrom Vec2
	planner := PlannerFunc(func(start, goal Vec2) ([]Vec2, bool) {
		planned++
		plannedFrom = start
		return []Vec2{{X: 3, Y: 3}, goal}, true
	})

	actor := &PathActor{
		ID:  "bot-1",
		Pos: Vec2{X: 2, Y: 2},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 9, Y: 9}},
			Index:  0,
			Target: Vec2{X: 9, Y: 9},
		},
	}

	if !FollowStep(actor, Vec2{X: 4, Y: 4}, DefaultFollowConfig(), planner, nil) {
		t.Fatalf("expected step to succeed after replanning")
	}
	if planned != 1 {
		t.Fatalf("expected exactly one replan, got %d", planned)
	}
	if plannedFrom != (Vec2{X: 2, Y: 2}) {
		t.Fatalf("replan should start at the actor position, got %+v", plannedFrom)
	}
	if actor.Follow.Target != (Vec2{X: 4, Y: 4}) {
		t.Fatalf("cached target not replaced: %+v", actor.Follow.Target)
	}
}

func TestFollowStepPlanningFailureClearsState(t *testing.T) {
	planner := PlannerFunc(func(start, goal Vec2) ([]Vec2, bool) {
		return nil, false
	})
	actor := &PathActor{
		ID:  "bot-1",
		Pos: Vec2{X: 0, Y: 0},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 1, Y: 1}},
			Index:  0,
			Target: Vec2{X: 9, Y: 9},
		},
	}

	if FollowStep(actor, Vec2{X: 20, Y: 20}, DefaultFollowConfig(), planner, nil) {
		t.Fatalf("expected step to report planning failure")
	}
	if actor.Follow.HasPath() {
		t.Fatalf("state should be cleared after failure: %+v", actor.Follow)
	}
	if actor.Pos != (Vec2{X: 0, Y: 0}) {
		t.Fatalf("actor should not move on failure, got %+v", actor.Pos)
	}
}

func TestFollowStepArrivalClearsPath(t *testing.T) {
	actor := &PathActor{
		ID:  "bot-1",
		Pos: Vec2{X: 2, Y: 2},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 2.02, Y: 2}},
			Index:  0,
			Target: Vec2{X: 2.02, Y: 2},
		},
	}

	if !FollowStep(actor, Vec2{X: 2.02, Y: 2}, DefaultFollowConfig(), nil, nil) {
		t.Fatalf("expected arrival to succeed")
	}
	if actor.Follow.HasPath() || actor.Follow.Path != nil {
		t.Fatalf("arrival should clear the cached path: %+v", actor.Follow)
	}
}

func TestFollowStepSkipsRegressingWaypoints(t *testing.T) {
	actor := &PathActor{
		ID:  "bot-1",
		Pos: Vec2{X: 5, Y: 0},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 3, Y: 0}, {X: 6, Y: 0}, {X: 10, Y: 0}},
			Index:  0,
			Target: Vec2{X: 10, Y: 0},
		},
	}

	if !FollowStep(actor, Vec2{X: 10, Y: 0}, DefaultFollowConfig(), nil, nil) {
		t.Fatalf("expected step to succeed")
	}
	if actor.Follow.Index != 1 {
		t.Fatalf("waypoint behind the actor should be skipped, index = %d", actor.Follow.Index)
	}
	if math.Abs(actor.Pos.X-5.5) > 1e-9 || math.Abs(actor.Pos.Y) > 1e-9 {
		t.Fatalf("unexpected position after skip and step: %+v", actor.Pos)
	}
}

func TestFollowStepSnapsOntoNearbyWaypoint(t *testing.T) {
	mover := &recordMover{}
	actor := &PathActor{
		ID:  "bot-7",
		Pos: Vec2{X: 0, Y: 0},
		Follow: &state.FollowState{
			Path:   []Vec2{{X: 0.3, Y: 0}, {X: 5, Y: 0}},
			Index:  0,
			Target: Vec2{X: 5, Y: 0},
		},
	}

	if !FollowStep(actor, Vec2{X: 5, Y: 0}, DefaultFollowConfig(), nil, mover) {
		t.Fatalf("expected step to succeed")
	}
	if actor.Pos != (Vec2{X: 0.3, Y: 0}) {
		t.Fatalf("expected snap onto waypoint, got %+v", actor.Pos)
	}
	if mover.id != "bot-7" || len(mover.positions) != 1 || mover.positions[0] != actor.Pos {
		t.Fatalf("mover should receive the stepped position: %+v", mover)
	}
}

func TestFollowStepProgressIsMonotonic(t *testing.T) {
	target := Vec2{X: 6, Y: 2}
	path := []Vec2{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 2}, target}

	var planned int
	planner := PlannerFunc(func(start, goal Vec2) ([]Vec2, bool) {
		planned++
		return append([]Vec2(nil), path...), true
	})

	actor := &PathActor{ID: "bot-1", Pos: Vec2{}, Follow: &state.FollowState{}}
	cfg := DefaultFollowConfig()

	prev := dist(actor.Pos, target)
	for i := 0; i < 200; i++ {
		if !FollowStep(actor, target, cfg, planner, nil) {
			t.Fatalf("step %d failed unexpectedly", i)
		}
		next := dist(actor.Pos, target)
		if next > prev+cfg.ProgressEpsilon+1e-9 {
			t.Fatalf("distance regressed at step %d: %.6f -> %.6f", i, prev, next)
		}
		prev = next
		if !actor.Follow.HasPath() {
			break
		}
	}

	if actor.Follow.HasPath() {
		t.Fatalf("path never exhausted, stuck at %+v", actor.Pos)
	}
	if planned != 1 {
		t.Fatalf("expected a single planning call, got %d", planned)
	}
	if actor.Pos != target {
		t.Fatalf("expected exact arrival at %+v, got %+v", target, actor.Pos)
	}
}

package bot

import (
	"math"

	state "mendbots/server/internal/state"
)

// FollowConfig tunes the incremental path follower.
type FollowConfig struct {
	// StepDistance is how far the actor moves per scheduling cycle.
	StepDistance float64
	// TargetTolerance is how far a requested target may drift from the
	// cached path's target before the follower replans.
	TargetTolerance float64
	// ArriveEpsilon is the distance below which a waypoint counts as
	// reached.
	ArriveEpsilon float64
	// ProgressEpsilon is the slack applied when deciding whether a
	// waypoint would regress overall progress toward the target.
	ProgressEpsilon float64
}

// DefaultFollowConfig mirrors the tuning used by the live controller.
func DefaultFollowConfig() FollowConfig {
	return FollowConfig{
		StepDistance:    0.5,
		TargetTolerance: 0.5,
		ArriveEpsilon:   0.05,
		ProgressEpsilon: 0.05,
	}
}

func (cfg FollowConfig) normalized() FollowConfig {
	defaults := DefaultFollowConfig()
	if cfg.StepDistance <= 0 {
		cfg.StepDistance = defaults.StepDistance
	}
	if cfg.TargetTolerance <= 0 {
		cfg.TargetTolerance = defaults.TargetTolerance
	}
	if cfg.ArriveEpsilon <= 0 {
		cfg.ArriveEpsilon = defaults.ArriveEpsilon
	}
	if cfg.ProgressEpsilon <= 0 {
		cfg.ProgressEpsilon = defaults.ProgressEpsilon
	}
	return cfg
}

// PathActor exposes the minimal actor state required to follow a path.
type PathActor struct {
	ID     string
	Pos    Vec2
	Follow *state.FollowState
}

// FollowStep advances the actor one cycle toward target. It reuses the
// cached path while the target stays within tolerance, skips waypoints the
// actor has already passed, and steps toward the current waypoint with a
// snap on the final approach. Returns false when no path to the target
// could be ensured; the caller retries next cycle.
func FollowStep(actor *PathActor, target Vec2, cfg FollowConfig, planner PathPlanner, mover Mover) bool {
	if actor == nil || actor.Follow == nil {
		return false
	}
	cfg = cfg.normalized()
	follow := actor.Follow

	if !ensurePath(actor, target, cfg, planner) {
		return false
	}

	if dist(actor.Pos, follow.Path[follow.Index]) < cfg.ArriveEpsilon {
		follow.Index++
		if follow.Index >= len(follow.Path) {
			follow.Clear()
			return true
		}
	}

	// Never steer toward a waypoint that sits farther from the target
	// than the actor already is.
	botDist := dist(actor.Pos, follow.Target)
	for follow.Index < len(follow.Path) {
		if dist(follow.Path[follow.Index], follow.Target) <= botDist+cfg.ProgressEpsilon {
			break
		}
		follow.Index++
	}
	if follow.Index >= len(follow.Path) {
		follow.Clear()
		return true
	}

	next := stepToward(actor.Pos, follow.Path[follow.Index], cfg.StepDistance)
	actor.Pos = next
	if mover != nil {
		mover.SetActorPosition(actor.ID, next)
	}
	return true
}

// ensurePath reuses the cached path when it still leads near target,
// otherwise replans from the actor's current position.
func ensurePath(actor *PathActor, target Vec2, cfg FollowConfig, planner PathPlanner) bool {
	follow := actor.Follow
	if follow.HasPath() && dist(follow.Target, target) <= cfg.TargetTolerance {
		return true
	}
	if planner == nil {
		follow.Clear()
		return false
	}
	path, ok := planner.PlanPath(actor.Pos, target)
	if !ok || len(path) == 0 {
		follow.Clear()
		return false
	}
	follow.Path = path
	follow.Index = 0
	follow.Target = target
	return true
}

func stepToward(from, to Vec2, step float64) Vec2 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	remaining := math.Hypot(dx, dy)
	if remaining <= step || remaining == 0 {
		return to
	}
	scale := step / remaining
	return Vec2{X: from.X + dx*scale, Y: from.Y + dy*scale}
}

func dist(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func distSq(a, b Vec2) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

package journal

import (
	"fmt"
)

// FailureReason names one failed insert for the degrade summary.
type FailureReason struct {
	Op  string
	Err string
}

// FailureSignal describes why the writer shut itself off.
type FailureSignal struct {
	Failures    uint64
	TotalWrites uint64
	Reasons     []FailureReason
}

// Policy decides when repeated insert failures should degrade the store
// to a no-op instead of burning a transaction per row on a sick database.
type Policy struct {
	totalWrites uint64
	failures    uint64
	pending     bool
	reasons     []FailureReason
}

const failureThresholdPerThousand = 100
const failureFloor = 8
const failureReasonLimit = 8

func NewPolicy() *Policy {
	return &Policy{reasons: make([]FailureReason, 0, failureReasonLimit)}
}

// NoteWrite counts one staged row.
func (p *Policy) NoteWrite() {
	if p == nil {
		return
	}
	if p.totalWrites == ^uint64(0) {
		p.totalWrites = p.totalWrites / 2
		p.failures = p.failures / 2
	}
	p.totalWrites++
}

// NoteFailure counts one failed insert and re-evaluates the threshold.
func (p *Policy) NoteFailure(op string, err error) {
	if p == nil {
		return
	}
	p.failures++
	if len(p.reasons) < failureReasonLimit && err != nil {
		p.reasons = append(p.reasons, FailureReason{Op: op, Err: err.Error()})
	}
	p.evaluate()
}

func (p *Policy) evaluate() {
	if p == nil || p.pending || p.failures < failureFloor {
		return
	}
	total := p.totalWrites
	if total == 0 {
		total = 1
	}
	if p.failures*1000 >= total*failureThresholdPerThousand {
		p.pending = true
	}
}

// Consume reports a tripped threshold exactly once and resets the counters.
func (p *Policy) Consume() (FailureSignal, bool) {
	if p == nil || !p.pending {
		return FailureSignal{}, false
	}
	signal := FailureSignal{
		Failures:    p.failures,
		TotalWrites: p.totalWrites,
		Reasons:     append([]FailureReason(nil), p.reasons...),
	}
	p.pending = false
	p.totalWrites = 0
	p.failures = 0
	if len(p.reasons) > 0 {
		p.reasons = p.reasons[:0]
	}
	return signal, true
}

func (s FailureSignal) Summary() string {
	if s.Failures == 0 && s.TotalWrites == 0 {
		return ""
	}
	return fmt.Sprintf("failures=%d writes=%d reasons=%v", s.Failures, s.TotalWrites, s.Reasons)
}

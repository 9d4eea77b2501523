// Package decision turns a model's probability vector into the verdict shown to
// callers.
package decision

import (
	"errors"
	"fmt"
	"math"

	"caffmed-api/internal/inference"
)

// UnrecognizedLabel is reported for inputs the model is not confident about,
// and for saturated outputs on suspicious inputs.
const UnrecognizedLabel = "not a recognized subject"

// Verdict is the outcome of one classification. When Error is set Label is
// empty and Confidence is zero.
type Verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

func (v Verdict) Failed() bool {
	return v.Error != ""
}

// Failure builds an error verdict.
func Failure(msg string) Verdict {
	return Verdict{Error: msg}
}

// SuspicionChecker flags inputs whose basic properties make a saturated
// prediction untrustworthy.
type SuspicionChecker interface {
	Suspicious(data []byte) bool
}

// Policy is immutable once built and safe for concurrent use.
type Policy struct {
	threshold float64
	classes   []string
	inspector SuspicionChecker
}

func NewPolicy(threshold float64, classes []string, inspector SuspicionChecker) (*Policy, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %.4f must be in (0, 1]", threshold)
	}
	if len(classes) == 0 {
		return nil, errors.New("class list is empty")
	}
	if inspector == nil {
		return nil, errors.New("suspicion checker is nil")
	}
	return &Policy{
		threshold: threshold,
		classes:   append([]string(nil), classes...),
		inspector: inspector,
	}, nil
}

func (p *Policy) Threshold() float64 { return p.threshold }

// Classes returns a copy of the class names in model output order.
func (p *Policy) Classes() []string {
	return append([]string(nil), p.classes...)
}

// CheckOutputSize fails when the model's output length disagrees with the
// class list, which would silently mislabel every result.
func (p *Policy) CheckOutputSize(n int) error {
	if n != len(p.classes) {
		return fmt.Errorf("model output has %d entries, %d class names configured", n, len(p.classes))
	}
	return nil
}

// Decide maps raw to a verdict. original is only inspected when the peak
// probability is saturated.
func (p *Policy) Decide(raw inference.RawPrediction, original []byte) Verdict {
	if len(raw) == 0 {
		return Failure("model returned an empty prediction")
	}
	if len(raw) != len(p.classes) {
		return Failure(fmt.Sprintf("model returned %d scores for %d classes", len(raw), len(p.classes)))
	}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Failure(fmt.Sprintf("model returned non-finite score for class %d", i))
		}
	}

	confidence, idx := raw.Max()
	if confidence < p.threshold {
		return Verdict{Label: UnrecognizedLabel, Confidence: confidence}
	}
	if confidence >= 1.0 && p.inspector.Suspicious(original) {
		return Verdict{Label: UnrecognizedLabel, Confidence: confidence}
	}
	return Verdict{Label: p.classes[idx], Confidence: confidence}
}

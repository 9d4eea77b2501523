package decision

import (
	"encoding/json"
	"math"
	"testing"

	"caffmed-api/internal/inference"
)

var classes = []string{"Glioma", "Meningioma", "No Tumor", "Pituitary"}

type fixedInspector struct {
	suspicious bool
	calls      int
}

func (f *fixedInspector) Suspicious([]byte) bool {
	f.calls++
	return f.suspicious
}

func newPolicy(t *testing.T, suspicious bool) (*Policy, *fixedInspector) {
	t.Helper()
	insp := &fixedInspector{suspicious: suspicious}
	p, err := NewPolicy(0.83, classes, insp)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	return p, insp
}

func TestDecideConfident(t *testing.T) {
	p, insp := newPolicy(t, true)
	got := p.Decide(inference.RawPrediction{0.95, 0.03, 0.01, 0.01}, nil)
	want := Verdict{Label: "Glioma", Confidence: 0.95}
	if got != want {
		t.Errorf("Decide() = %+v, want %+v", got, want)
	}
	if insp.calls != 0 {
		t.Errorf("inspector consulted %d times for unsaturated output", insp.calls)
	}
}

func TestDecideBelowThreshold(t *testing.T) {
	p, _ := newPolicy(t, false)
	for _, raw := range []inference.RawPrediction{
		{0.82, 0.18, 0, 0},
		{0.25, 0.25, 0.25, 0.25},
		{0, 0, 0.1, 0.8299},
	} {
		got := p.Decide(raw, nil)
		if got.Label != UnrecognizedLabel || got.Failed() {
			t.Errorf("Decide(%v) = %+v, want %q", raw, got, UnrecognizedLabel)
		}
		want, _ := raw.Max()
		if got.Confidence != want {
			t.Errorf("Decide(%v).Confidence = %v, want %v", raw, got.Confidence, want)
		}
	}
}

func TestDecideAtThreshold(t *testing.T) {
	p, _ := newPolicy(t, false)
	got := p.Decide(inference.RawPrediction{0, 0.83, 0.17, 0}, nil)
	if got.Label != "Meningioma" {
		t.Errorf("Decide() at threshold = %+v", got)
	}
}

func TestDecideSaturated(t *testing.T) {
	raw := inference.RawPrediction{0, 0, 0, 1.0}

	p, insp := newPolicy(t, true)
	got := p.Decide(raw, []byte("tiny"))
	if got.Label != UnrecognizedLabel || got.Confidence != 1.0 {
		t.Errorf("suspicious saturated Decide() = %+v", got)
	}
	if insp.calls != 1 {
		t.Errorf("inspector calls = %d, want 1", insp.calls)
	}

	p, _ = newPolicy(t, false)
	got = p.Decide(raw, []byte("clean"))
	if got.Label != "Pituitary" || got.Confidence != 1.0 {
		t.Errorf("clean saturated Decide() = %+v", got)
	}
}

func TestDecideDeterministic(t *testing.T) {
	p, _ := newPolicy(t, true)
	raw := inference.RawPrediction{0.1, 0.2, 0.6, 0.1}
	first := p.Decide(raw, []byte("x"))
	for i := 0; i < 10; i++ {
		if got := p.Decide(raw, []byte("x")); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
}

func TestDecideMalformed(t *testing.T) {
	p, _ := newPolicy(t, false)
	if got := p.Decide(nil, nil); !got.Failed() || got.Confidence != 0 {
		t.Errorf("Decide(nil) = %+v", got)
	}
	if got := p.Decide(inference.RawPrediction{0.9, 0.1}, nil); !got.Failed() || got.Label != "" {
		t.Errorf("Decide(short) = %+v", got)
	}
}

func TestNewPolicyValidation(t *testing.T) {
	insp := &fixedInspector{}
	if _, err := NewPolicy(0, classes, insp); err == nil {
		t.Error("threshold 0 accepted")
	}
	if _, err := NewPolicy(1.01, classes, insp); err == nil {
		t.Error("threshold above 1 accepted")
	}
	if _, err := NewPolicy(0.5, nil, insp); err == nil {
		t.Error("empty classes accepted")
	}
	if _, err := NewPolicy(0.5, classes, nil); err == nil {
		t.Error("nil inspector accepted")
	}
}

func TestCheckOutputSize(t *testing.T) {
	p, _ := newPolicy(t, false)
	if err := p.CheckOutputSize(4); err != nil {
		t.Errorf("CheckOutputSize(4) = %v", err)
	}
	if err := p.CheckOutputSize(5); err == nil {
		t.Error("CheckOutputSize(5) = nil")
	}
}

func TestClassesIsCopy(t *testing.T) {
	p, _ := newPolicy(t, false)
	got := p.Classes()
	got[0] = "mutated"
	if p.Classes()[0] != "Glioma" {
		t.Error("Classes() exposes internal slice")
	}
}

func TestDecideNonFiniteScores(t *testing.T) {
	p, _ := newPolicy(t, false)
	for _, raw := range []inference.RawPrediction{
		{math.NaN(), 0.1, 0.1, 0.1},
		{0.9, math.NaN(), 0, 0},
		{math.Inf(1), 0, 0, 0},
		{0.9, math.Inf(-1), 0, 0},
	} {
		got := p.Decide(raw, nil)
		if !got.Failed() || got.Confidence != 0 {
			t.Errorf("Decide(%v) = %+v, want failure", raw, got)
		}
		if _, err := json.Marshal(got); err != nil {
			t.Errorf("verdict for %v not encodable: %v", raw, err)
		}
	}
}

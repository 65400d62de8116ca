package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/artifact"
	"gantry/internal/config"
	"gantry/internal/imaging"
	"gantry/internal/logging"
	"gantry/internal/selection"
)

// Processor turns a fetched item container into an artifact bundle. The
// default implementation runs the full local pipeline; tests substitute it to
// exercise run orchestration without DICOM fixtures.
type Processor func(ctx context.Context, itemID, runID, containerPath string) (*artifact.Bundle, error)

// NewProcessor builds the load → select → anonymize → package pipeline from
// configuration.
func NewProcessor(cfg *config.Config, logger *slog.Logger) (Processor, error) {
	strategy, err := selection.StrategyFor(cfg.Triage.Scoring)
	if err != nil {
		return nil, err
	}
	policy := anonymize.DefaultPolicy(cfg.Anonymize.RedactionToken)
	redactor, err := redactorFor(cfg.Anonymize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	sliceCount := cfg.Triage.SliceCount
	workers := cfg.Triage.Workers
	tolerance := cfg.Triage.MaxUnreadableFraction
	parameters := pipelineParameters(cfg)

	return func(ctx context.Context, itemID, runID, containerPath string) (*artifact.Bundle, error) {
		series, err := imaging.LoadSeries(ctx, itemID, containerPath, imaging.LoadOptions{
			MaxUnreadableFraction: tolerance,
			Logger:                logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("series loaded",
			slog.Int("slices", series.Len()),
			slog.Int("skipped", len(series.Skipped)))

		result, err := selection.Select(series, sliceCount, strategy)
		if err != nil {
			return nil, err
		}

		picked := make([]imaging.Slice, 0, len(result.Indices))
		for _, idx := range result.Indices {
			picked = append(picked, series.Slices[idx])
		}

		anonymized, err := anonymize.ApplyAll(ctx, picked, policy, redactor, workers)
		if err != nil {
			return nil, err
		}

		return artifact.Package(anonymized, artifact.Provenance{
			ItemID:     itemID,
			RunID:      runID,
			Selection:  result,
			Skipped:    series.Skipped,
			Parameters: parameters,
			CreatedAt:  time.Now().UTC(),
		})
	}, nil
}

func redactorFor(cfg config.Anonymize) (anonymize.Redactor, error) {
	lowConfidence, ok := anonymize.ParseLowConfidenceAction(cfg.LowConfidenceAction)
	if !ok {
		return anonymize.Redactor{}, fmt.Errorf("unknown low confidence action %q", cfg.LowConfidenceAction)
	}

	var detector anonymize.Detector
	switch cfg.Detector {
	case "regions":
		regions := make([]anonymize.Region, 0, len(cfg.Regions))
		for _, r := range cfg.Regions {
			regions = append(regions, anonymize.Region{X: r.X, Y: r.Y, W: r.W, H: r.H})
		}
		detector = anonymize.FixedRegions{Regions: regions}
	case "gradient":
		detector = anonymize.GradientDetector{EdgeMarginPercent: cfg.EdgeMarginPercent}
	default:
		return anonymize.Redactor{}, fmt.Errorf("unknown detector %q", cfg.Detector)
	}

	return anonymize.Redactor{
		Detector:            detector,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		LowConfidence:       lowConfidence,
		EdgeMarginPercent:   cfg.EdgeMarginPercent,
	}, nil
}

// pipelineParameters records the effective settings in the manifest so every
// artifact is reproducible from its provenance alone.
func pipelineParameters(cfg *config.Config) map[string]string {
	return map[string]string{
		"slice_count":             strconv.Itoa(cfg.Triage.SliceCount),
		"scoring":                 cfg.Triage.Scoring,
		"max_unreadable_fraction": strconv.FormatFloat(cfg.Triage.MaxUnreadableFraction, 'f', -1, 64),
		"detector":                cfg.Anonymize.Detector,
		"edge_margin_percent":     strconv.FormatFloat(cfg.Anonymize.EdgeMarginPercent, 'f', -1, 64),
		"confidence_threshold":    strconv.FormatFloat(cfg.Anonymize.ConfidenceThreshold, 'f', -1, 64),
		"low_confidence_action":   cfg.Anonymize.LowConfidenceAction,
	}
}

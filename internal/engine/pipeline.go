package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgedesk/scanforge/internal/codegen"
	"github.com/edgedesk/scanforge/internal/detect"
	"github.com/edgedesk/scanforge/internal/models"
)

// CodeFormatter defines the AI backend behaviour used by the pipeline.
type CodeFormatter interface {
	FormatCode(ctx context.Context, text string) (string, error)
}

// Pipeline orchestrates the detect-and-format flow: heuristic detection picks
// a scanner pattern, then either the AI backend or the deterministic template
// renders the code.
type Pipeline struct {
	logger    *slog.Logger
	detector  *detect.Detector
	generator *codegen.Generator
	ai        CodeFormatter
}

// NewPipeline constructs a format pipeline. The AI formatter may be nil, in
// which case every request takes the template path.
func NewPipeline(logger *slog.Logger, detector *detect.Detector, generator *codegen.Generator, ai CodeFormatter) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if generator == nil {
		generator = codegen.NewGenerator()
	}
	return &Pipeline{
		logger:    logger,
		detector:  detector,
		generator: generator,
		ai:        ai,
	}
}

// Detect runs heuristic detection only.
func (p *Pipeline) Detect(text string) (models.DetectionResult, error) {
	if p.detector == nil {
		return models.DetectionResult{}, fmt.Errorf("detector not configured")
	}
	return p.detector.Detect(text), nil
}

// Library returns the detection pattern library in registration order.
func (p *Pipeline) Library() []models.ScannerPattern {
	if p.detector == nil {
		return nil
	}
	return p.detector.Library()
}

// Format turns free text into scanner code. AI output is preferred when the
// request asks for it; any AI failure falls back to the template path rather
// than surfacing to the caller.
func (p *Pipeline) Format(ctx context.Context, req models.FormatRequest) (models.FormatResult, error) {
	if p.detector == nil {
		return models.FormatResult{}, fmt.Errorf("detector not configured")
	}

	detection := p.detector.Detect(req.Text)

	if req.UseAI && p.ai != nil {
		code, err := p.ai.FormatCode(ctx, req.Text)
		if err == nil {
			return models.FormatResult{
				Code:      code,
				Source:    models.FormatSourceAI,
				Detection: detection,
			}, nil
		}
		p.logger.Warn("ai format failed, using template fallback",
			slog.String("scanner_type", detection.ScannerType),
			slog.Any("error", err))
	}

	code, err := p.templateCode(detection, req.Text)
	if err != nil {
		return models.FormatResult{}, err
	}
	return models.FormatResult{
		Code:      code,
		Source:    models.FormatSourceTemplate,
		Detection: detection,
	}, nil
}

// templateCode renders the detected pattern, or a scaffold preserving the
// original text when detection stayed below the confidence floor.
func (p *Pipeline) templateCode(detection models.DetectionResult, text string) (string, error) {
	if detection.ScannerType == "" {
		code, err := p.generator.Scaffold(text)
		if err != nil {
			return "", fmt.Errorf("scaffold fallback: %w", err)
		}
		return code, nil
	}

	pattern, ok := p.detector.PatternByName(detection.ScannerType)
	if !ok {
		return "", fmt.Errorf("detected pattern %q missing from library", detection.ScannerType)
	}
	code, err := p.generator.Generate(pattern, detection.SuggestedParameters)
	if err != nil {
		return "", fmt.Errorf("generate %q: %w", detection.ScannerType, err)
	}
	return code, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/worker"
)

// Generator is the part of the API client that triggers AI generation.
type Generator interface {
	GenerateSummary(ctx context.Context, id int64) (*material.GeneratedData, error)
	GenerateQuiz(ctx context.Context, id int64) (*material.GeneratedData, error)
	ExtractConcepts(ctx context.Context, id int64) (*material.GeneratedData, error)
}

// MaterialCache is the part of the local store that keeps the viewer's copy
// of a record current.
type MaterialCache interface {
	CachedMaterial(ctx context.Context, id int64) (material.Record, error)
	PutMaterial(ctx context.Context, rec material.Record) error
}

type GenerationKind string

const (
	KindSummary  GenerationKind = "summary"
	KindQuiz     GenerationKind = "quiz"
	KindConcepts GenerationKind = "concepts"
)

// AllKinds lists every kind in display order.
var AllKinds = []GenerationKind{KindSummary, KindQuiz, KindConcepts}

// GenerationResult is the outcome of one kind. Exactly one of Data and Err
// is set.
type GenerationResult struct {
	Kind     GenerationKind
	Data     *material.GeneratedData
	Err      error
	Duration time.Duration
}

// GenerationReport collects every requested kind, in request order, plus the
// merged view of the generated data.
type GenerationReport struct {
	MaterialID int64
	Results    []GenerationResult
	Merged     *material.GeneratedData
}

// Failed returns the results that ended in error.
func (r GenerationReport) Failed() []GenerationResult {
	return lo.Filter(r.Results, func(res GenerationResult, _ int) bool {
		return res.Err != nil
	})
}

// GenerationService runs generation requests for one material concurrently.
// A failing kind is logged and reported; it never aborts the others.
type GenerationService struct {
	backend Generator
	cache   MaterialCache
	logger  *slog.Logger
}

func NewGenerationService(backend Generator, cache MaterialCache, logger *slog.Logger) *GenerationService {
	return &GenerationService{backend: backend, cache: cache, logger: logger}
}

// Generate requests kinds for materialID and waits for all of them. base is
// the generated data already known for the material (may be nil); fresh
// results are merged over it.
func (gs *GenerationService) Generate(ctx context.Context, materialID int64, base *material.GeneratedData, kinds []GenerationKind) (GenerationReport, error) {
	kinds = lo.Uniq(kinds)
	if len(kinds) == 0 {
		return GenerationReport{}, invalid("kinds", "nothing to generate")
	}

	pool := worker.NewPool[GenerationResult](ctx, len(kinds), len(kinds))
	for _, kind := range kinds {
		pool.Submit(string(kind), func(ctx context.Context) GenerationResult {
			return gs.run(ctx, materialID, kind)
		})
	}
	pool.Close()

	byKind := make(map[GenerationKind]GenerationResult, len(kinds))
	for r := range pool.Results() {
		byKind[r.Output.Kind] = r.Output
	}

	report := GenerationReport{MaterialID: materialID, Merged: base}
	for _, kind := range kinds {
		res := byKind[kind]
		report.Results = append(report.Results, res)
		if res.Err == nil {
			report.Merged = report.Merged.Merge(res.Data)
		}
	}

	gs.updateCache(ctx, materialID, report)
	return report, nil
}

func (gs *GenerationService) run(ctx context.Context, materialID int64, kind GenerationKind) GenerationResult {
	start := time.Now()
	res := GenerationResult{Kind: kind}

	switch kind {
	case KindSummary:
		res.Data, res.Err = gs.backend.GenerateSummary(ctx, materialID)
	case KindQuiz:
		res.Data, res.Err = gs.backend.GenerateQuiz(ctx, materialID)
	case KindConcepts:
		res.Data, res.Err = gs.backend.ExtractConcepts(ctx, materialID)
	default:
		res.Err = fmt.Errorf("unknown generation kind %q", kind)
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		res.Data = nil
		gs.logger.Error("generation failed",
			"material_id", materialID,
			"kind", kind,
			"error", res.Err,
		)
		return res
	}
	gs.logger.Info("generation finished",
		"material_id", materialID,
		"kind", kind,
		"duration", res.Duration,
	)
	return res
}

func (gs *GenerationService) updateCache(ctx context.Context, materialID int64, report GenerationReport) {
	if len(report.Failed()) == len(report.Results) {
		return
	}
	rec, err := gs.cache.CachedMaterial(ctx, materialID)
	if err != nil {
		// Not cached yet; the next history or view fetch fills it in.
		return
	}
	for _, res := range report.Results {
		if res.Err == nil {
			rec.GeneratedData = rec.GeneratedData.Merge(res.Data)
		}
	}
	if err := gs.cache.PutMaterial(ctx, rec); err != nil {
		gs.logger.Error("failed to cache generated data", "material_id", materialID, "error", err)
	}
}

// ParseKinds maps names such as "summary" or "all" to kinds.
func ParseKinds(names []string) ([]GenerationKind, error) {
	var kinds []GenerationKind
	for _, n := range names {
		switch GenerationKind(n) {
		case KindSummary, KindQuiz, KindConcepts:
			kinds = append(kinds, GenerationKind(n))
		case "all":
			kinds = append(kinds, AllKinds...)
		default:
			return nil, invalid("kinds", fmt.Sprintf("unknown kind %q", n))
		}
	}
	return lo.Uniq(kinds), nil
}

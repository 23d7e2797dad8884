package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/optima-study/optima/internal/client"
	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/domain/quiz"
	"github.com/optima-study/optima/internal/store"
)

// LibraryBackend is the part of the API client that reads and removes
// materials.
type LibraryBackend interface {
	History(ctx context.Context) ([]material.Record, error)
	Material(ctx context.Context, id int64) (material.Record, error)
	DeleteMaterial(ctx context.Context, id int64) error
	DownloadURL(ctx context.Context, id int64) (string, error)
	FetchFile(ctx context.Context, rawURL string, w io.Writer) (int64, error)
	Health(ctx context.Context) (client.Health, error)
}

// Cache is the local copy of the user's materials and quiz attempts.
type Cache interface {
	ReplaceMaterials(ctx context.Context, records []material.Record, syncedAt time.Time) error
	PutMaterial(ctx context.Context, rec material.Record) error
	CachedMaterials(ctx context.Context) ([]material.Record, error)
	CachedMaterial(ctx context.Context, id int64) (material.Record, error)
	DeleteCachedMaterial(ctx context.Context, id int64) error
	HistorySyncedAt(ctx context.Context) (time.Time, error)

	SaveAttempt(ctx context.Context, a quiz.Attempt) error
	RecentAttempts(ctx context.Context, limit int) ([]quiz.Attempt, error)
	AttemptsForMaterial(ctx context.Context, materialID int64) ([]quiz.Attempt, error)
	DeleteAttemptsForMaterial(ctx context.Context, materialID int64) error
}

const (
	dashboardRecentMaterials = 5
	dashboardRecentAttempts  = 5
)

// LibraryService serves the history, dashboard and material viewer.
type LibraryService struct {
	backend LibraryBackend
	cache   Cache
	logger  *slog.Logger
	now     func() time.Time
}

func NewLibraryService(backend LibraryBackend, cache Cache, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		backend: backend,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Listing is a history view. Offline is set when the backend could not be
// reached and Records came from the cache synced at SyncedAt.
type Listing struct {
	Records  []material.Record
	Offline  bool
	SyncedAt time.Time
}

// ============================================================================
// History
// ============================================================================

// History fetches every material, refreshes the cache, and applies f.
func (s *LibraryService) History(ctx context.Context, f material.Filter) (Listing, error) {
	listing, err := s.history(ctx)
	if err != nil {
		return listing, err
	}
	listing.Records = f.Apply(listing.Records)
	return listing, nil
}

func (s *LibraryService) history(ctx context.Context) (Listing, error) {
	records, err := s.backend.History(ctx)
	if err == nil {
		now := s.now()
		if cacheErr := s.cache.ReplaceMaterials(ctx, records, now); cacheErr != nil {
			s.logger.Error("failed to cache history", "error", cacheErr)
		}
		return Listing{Records: records, SyncedAt: now}, nil
	}

	if !unreachable(err) {
		return Listing{}, err
	}

	cached, cacheErr := s.cache.CachedMaterials(ctx)
	if cacheErr != nil || len(cached) == 0 {
		if cacheErr != nil {
			s.logger.Error("failed to read cached history", "error", cacheErr)
		}
		return Listing{}, err
	}
	syncedAt, _ := s.cache.HistorySyncedAt(ctx)
	s.logger.Warn("backend unreachable, using cached history", "error", err, "synced_at", syncedAt)
	return Listing{Records: cached, Offline: true, SyncedAt: syncedAt}, nil
}

// unreachable reports whether err means the backend could not answer, as
// opposed to answering with a refusal.
func unreachable(err error) bool {
	return client.IsKind(err, client.KindNetwork) ||
		client.IsKind(err, client.KindTimeout) ||
		client.IsKind(err, client.KindServer)
}

// ============================================================================
// Dashboard
// ============================================================================

// Dashboard is the landing overview.
type Dashboard struct {
	Stats          material.Stats
	Recent         []material.Record
	Attempts       []quiz.Attempt
	Offline        bool
	BackendStatus  string // "healthy", the backend's own status, or "unreachable"
	StorageEnabled bool
}

// Dashboard loads history, backend health and recent attempts concurrently.
// Only a history failure is fatal.
func (s *LibraryService) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		d       Dashboard
		listing Listing
		health  client.Health
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		listing, err = s.history(gctx)
		return err
	})

	g.Go(func() error {
		var err error
		if health, err = s.backend.Health(gctx); err != nil {
			s.logger.Debug("health check failed", "error", err)
			health = client.Health{Status: "unreachable"}
		}
		return nil
	})

	g.Go(func() error {
		var err error
		if d.Attempts, err = s.cache.RecentAttempts(gctx, dashboardRecentAttempts); err != nil {
			s.logger.Error("failed to load quiz attempts", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	records := append([]material.Record(nil), listing.Records...)
	material.SortNewestFirst(records)

	d.Stats = material.ComputeStats(records)
	d.Recent = records[:min(dashboardRecentMaterials, len(records))]
	d.Offline = listing.Offline
	d.BackendStatus = health.Status
	d.StorageEnabled = health.Storage != nil && health.Storage.Configured
	return d, nil
}

// Health checks the backend directly.
func (s *LibraryService) Health(ctx context.Context) (client.Health, error) {
	return s.backend.Health(ctx)
}

// ============================================================================
// Material viewer
// ============================================================================

// View loads one material. When the backend cannot be reached the cached
// copy is returned with offline set.
func (s *LibraryService) View(ctx context.Context, id int64) (rec material.Record, offline bool, err error) {
	rec, err = s.backend.Material(ctx, id)
	if err == nil {
		if cacheErr := s.cache.PutMaterial(ctx, rec); cacheErr != nil {
			s.logger.Error("failed to cache material", "material_id", id, "error", cacheErr)
		}
		return rec, false, nil
	}
	if !unreachable(err) {
		return rec, false, err
	}

	cached, cacheErr := s.cache.CachedMaterial(ctx, id)
	if cacheErr != nil {
		if !errors.Is(cacheErr, store.ErrNotFound) {
			s.logger.Error("failed to read cached material", "material_id", id, "error", cacheErr)
		}
		return rec, false, err
	}
	return cached, true, nil
}

// Delete removes a material from the backend and every local trace of it.
func (s *LibraryService) Delete(ctx context.Context, id int64) error {
	if err := s.backend.DeleteMaterial(ctx, id); err != nil {
		return err
	}
	if err := s.cache.DeleteCachedMaterial(ctx, id); err != nil {
		s.logger.Error("failed to drop cached material", "material_id", id, "error", err)
	}
	if err := s.cache.DeleteAttemptsForMaterial(ctx, id); err != nil {
		s.logger.Error("failed to drop quiz attempts", "material_id", id, "error", err)
	}
	s.logger.Info("material deleted", "material_id", id)
	return nil
}

// Download saves a material into dir and returns the written path. PDFs are
// fetched through the backend's download link; text materials are written
// from their content.
func (s *LibraryService) Download(ctx context.Context, id int64, dir string) (string, error) {
	rec, _, err := s.View(ctx, id)
	if err != nil {
		return "", err
	}
	m := rec.Material
	path := filepath.Join(dir, m.DownloadName())

	if m.FileType != material.FileTypePDF {
		if err := os.WriteFile(path, []byte(m.Content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return path, nil
	}

	link, err := s.backend.DownloadURL(ctx, id)
	if err != nil {
		return "", err
	}
	if link == "" {
		return "", fmt.Errorf("material %d has no stored file", id)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	n, err := s.backend.FetchFile(ctx, link, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	s.logger.Info("material downloaded", "material_id", id, "path", path, "bytes", n)
	return path, nil
}

// ============================================================================
// Quiz attempts
// ============================================================================

func (s *LibraryService) RecordAttempt(ctx context.Context, a quiz.Attempt) error {
	if err := s.cache.SaveAttempt(ctx, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	s.logger.Info("quiz attempt recorded",
		"material_id", a.MaterialID,
		"correct", a.Score.Correct,
		"total", a.Score.Total,
	)
	return nil
}

func (s *LibraryService) Attempts(ctx context.Context, materialID int64) ([]quiz.Attempt, error) {
	return s.cache.AttemptsForMaterial(ctx, materialID)
}

// ============================================================================
// Export
// ============================================================================

type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// Export is a material with its generated data decoded.
type Export struct {
	Material    material.Material  `json:"material" yaml:"material"`
	Summary     string             `json:"summary,omitempty" yaml:"summary,omitempty"`
	Quiz        []quiz.Question    `json:"quiz,omitempty" yaml:"quiz,omitempty"`
	Concepts    []material.Concept `json:"key_concepts,omitempty" yaml:"key_concepts,omitempty"`
	GeneratedAt *time.Time         `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
}

func NewExport(rec material.Record) Export {
	e := Export{Material: rec.Material, Summary: rec.GeneratedData.SummaryText()}
	e.Quiz, _ = rec.GeneratedData.Questions()
	e.Concepts, _ = rec.GeneratedData.Concepts()
	if g := rec.GeneratedData; g != nil && g.GeneratedAt != nil && !g.GeneratedAt.IsZero() {
		t := g.GeneratedAt.UTC()
		e.GeneratedAt = &t
	}
	return e
}

// Export writes one material in the given format.
func (s *LibraryService) Export(ctx context.Context, id int64, format ExportFormat, w io.Writer) error {
	rec, _, err := s.View(ctx, id)
	if err != nil {
		return err
	}
	return WriteExport(w, NewExport(rec), format)
}

func WriteExport(w io.Writer, e Export, format ExportFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return err
		}
		return enc.Close()
	default:
		return invalid("format", fmt.Sprintf("unknown export format %q", format))
	}
}

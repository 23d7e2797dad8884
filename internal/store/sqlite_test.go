package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/optima-study/optima/internal/domain/material"
	"github.com/optima-study/optima/internal/domain/quiz"
	"github.com/optima-study/optima/internal/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "nested", "optima.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id int64, title string, uploaded time.Time, quizJSON *string) material.Record {
	return material.Record{
		Material: material.Material{
			ID:         id,
			Title:      title,
			Content:    "content " + title,
			FileType:   material.FileTypeText,
			UploadedAt: material.Timestamp{Time: uploaded},
		},
		GeneratedData: &material.GeneratedData{MaterialID: id, QuizQuestions: quizJSON},
	}
}

func TestSQLiteStore_TokenSlot(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	token, err := s.Token(ctx)
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q (%v)", token, err)
	}

	if err := s.SetToken(ctx, "first"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := s.SetToken(ctx, "second"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if token, _ := s.Token(ctx); token != "second" {
		t.Errorf("expected single slot to hold the latest token, got %q", token)
	}

	if err := s.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if token, _ := s.Token(ctx); token != "" {
		t.Errorf("expected cleared token, got %q", token)
	}
}

func TestSQLiteStore_SettingNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.GetSetting(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_MaterialsCache(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	quizJSON := `[{"question":"Q?","type":"short_answer"}]`
	records := []material.Record{
		rec(1, "old", base, nil),
		rec(2, "new", base.Add(time.Hour), &quizJSON),
	}

	synced := base.Add(2 * time.Hour)
	if err := s.ReplaceMaterials(ctx, records, synced); err != nil {
		t.Fatalf("ReplaceMaterials: %v", err)
	}

	cached, err := s.CachedMaterials(ctx)
	if err != nil {
		t.Fatalf("CachedMaterials: %v", err)
	}
	if len(cached) != 2 || cached[0].Material.ID != 2 {
		t.Fatalf("expected newest first, got %+v", cached)
	}
	questions, ok := cached[0].GeneratedData.Questions()
	if !ok || len(questions) != 1 {
		t.Errorf("expected quiz to survive the round trip, got %v", questions)
	}
	if !cached[0].Material.UploadedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected uploaded_at %v", cached[0].Material.UploadedAt)
	}

	at, err := s.HistorySyncedAt(ctx)
	if err != nil || !at.Equal(synced) {
		t.Errorf("expected sync time %v, got %v (%v)", synced, at, err)
	}

	if err := s.ReplaceMaterials(ctx, records[:1], synced); err != nil {
		t.Fatalf("ReplaceMaterials: %v", err)
	}
	if _, err := s.CachedMaterial(ctx, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected replaced cache to drop material 2, got %v", err)
	}
}

func TestSQLiteStore_PutAndDeleteMaterial(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := rec(5, "draft", time.Now(), nil)
	if err := s.PutMaterial(ctx, r); err != nil {
		t.Fatalf("PutMaterial: %v", err)
	}
	r.Material.Title = "final"
	if err := s.PutMaterial(ctx, r); err != nil {
		t.Fatalf("PutMaterial: %v", err)
	}

	got, err := s.CachedMaterial(ctx, 5)
	if err != nil || got.Material.Title != "final" {
		t.Errorf("expected updated title, got %q (%v)", got.Material.Title, err)
	}

	if err := s.DeleteCachedMaterial(ctx, 5); err != nil {
		t.Fatalf("DeleteCachedMaterial: %v", err)
	}
	if _, err := s.CachedMaterial(ctx, 5); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.ClearMaterials(ctx); err != nil {
		t.Fatalf("ClearMaterials: %v", err)
	}
	if _, err := s.HistorySyncedAt(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no sync time after clear, got %v", err)
	}
}

func TestSQLiteStore_Attempts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := quiz.NewAttempt(1, "Cells", quiz.Score{Correct: 1, Total: 2, Percentage: 50}, map[int]string{0: "A", 1: "B"}, base)
	second := quiz.NewAttempt(1, "Cells", quiz.Score{Correct: 2, Total: 2, Percentage: 100}, map[int]string{0: "A"}, base.Add(time.Minute))
	other := quiz.NewAttempt(2, "Atoms", quiz.Score{Correct: 0, Total: 1}, nil, base.Add(2*time.Minute))

	for _, a := range []quiz.Attempt{first, second, other} {
		if err := s.SaveAttempt(ctx, a); err != nil {
			t.Fatalf("SaveAttempt: %v", err)
		}
	}

	recent, err := s.RecentAttempts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAttempts: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != other.ID || recent[1].ID != second.ID {
		t.Errorf("unexpected recent attempts %+v", recent)
	}

	forMaterial, err := s.AttemptsForMaterial(ctx, 1)
	if err != nil {
		t.Fatalf("AttemptsForMaterial: %v", err)
	}
	if len(forMaterial) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(forMaterial))
	}
	last := forMaterial[1]
	if last.Answers[1] != "B" || last.Score.Percentage != 50 || !last.CompletedAt.Equal(base) {
		t.Errorf("attempt did not round trip: %+v", last)
	}

	if err := s.DeleteAttemptsForMaterial(ctx, 1); err != nil {
		t.Fatalf("DeleteAttemptsForMaterial: %v", err)
	}
	if left, _ := s.AttemptsForMaterial(ctx, 1); len(left) != 0 {
		t.Errorf("expected attempts deleted, got %d", len(left))
	}
}

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"caffmed-api/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Prediction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPredictionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPredictionRepository(newTestDB(t))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []model.Prediction{
		{RequestID: "r1", SHA256: "a", Label: "Glioma", Confidence: 0.9, CreatedAt: base},
		{RequestID: "r2", SHA256: "b", Label: "Glioma", Confidence: 0.95, CreatedAt: base.Add(time.Minute)},
		{RequestID: "r3", SHA256: "c", Label: "Pituitary", Confidence: 0.88, CreatedAt: base.Add(2 * time.Minute)},
		{RequestID: "r4", SHA256: "d", Error: "cannot decode image", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range records {
		if err := repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	recent, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].RequestID != "r4" || recent[1].RequestID != "r3" {
		t.Errorf("ListRecent(2) = %+v", recent)
	}

	counts, err := repo.CountByLabel(ctx)
	if err != nil {
		t.Fatalf("CountByLabel() error = %v", err)
	}
	want := []LabelCount{{"Glioma", 2}, {"Pituitary", 1}}
	if len(counts) != len(want) {
		t.Fatalf("CountByLabel() = %+v", counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("CountByLabel()[%d] = %+v, want %+v", i, counts[i], want[i])
		}
	}

}

func TestPredictionRepositoryKeepsRepeatedRequestID(t *testing.T) {
	ctx := context.Background()
	repo := NewPredictionRepository(newTestDB(t))

	// clients may resend the same X-Request-ID on retry
	for i := 0; i < 2; i++ {
		rec := model.Prediction{RequestID: "7f0c2c4e-2b43-4c1e-9a57-1d1f4e1b2c3d", SHA256: "a", Label: "Glioma"}
		if err := repo.Create(ctx, &rec); err != nil {
			t.Fatalf("Create(#%d) error = %v", i, err)
		}
	}
	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("ListRecent() = %d rows, want 2", len(recent))
	}
}

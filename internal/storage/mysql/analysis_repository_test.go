package mysql

import (
	"context"
	"testing"
)

func TestMemoryAnalysisRepositoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewMemoryAnalysisRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	first := AnalysisRecord{Week1Path: "w1.json", Week2Path: "w2.json", Narrative: "第一次", CreatedAt: 100}
	second := AnalysisRecord{Week1Path: "w3.json", Week2Path: "w4.json", Narrative: "第二次", CreatedAt: 200}

	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	records, err := repo.ListLatest(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Narrative != "第二次" {
		t.Fatalf("expected most recent record first, got %+v", records)
	}

	// 重新打开仓库应能从磁盘恢复记录。
	reopened, err := NewMemoryAnalysisRepository(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	restored, err := reopened.ListLatest(ctx, 10)
	if err != nil {
		t.Fatalf("list restored: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored records, got %d", len(restored))
	}
	if restored[0].Narrative != "第二次" {
		t.Fatalf("expected newest first after reload, got %+v", restored)
	}
}

func TestMemoryAnalysisRepositoryLimit(t *testing.T) {
	repo, err := NewMemoryAnalysisRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := repo.ListLatest(context.Background(), 5)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

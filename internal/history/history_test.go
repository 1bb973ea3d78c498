package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	log.Record(ctx, 7, 0.93, 12*time.Millisecond)
	log.Record(ctx, 3, 0.51, 8*time.Millisecond)

	entries, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Digit != 3 || entries[1].Digit != 7 {
		t.Fatalf("order: got %d then %d", entries[0].Digit, entries[1].Digit)
	}
	if entries[1].Confidence < 0.92 || entries[1].Confidence > 0.94 {
		t.Errorf("confidence: got %v", entries[1].Confidence)
	}
	if entries[0].LatencyMS != 8 {
		t.Errorf("latency: got %d", entries[0].LatencyMS)
	}
}

func TestRecentLimit(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.Record(ctx, i, 0.5, time.Millisecond)
	}
	entries, err := log.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("limit ignored: got %d entries", len(entries))
	}
}

func TestNilLogIsNoOp(t *testing.T) {
	var log *Log
	log.Record(context.Background(), 1, 0.5, time.Millisecond)
	entries, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("nil Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("nil log returned entries: %v", entries)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

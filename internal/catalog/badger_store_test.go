package catalog

import (
	"context"
	"testing"
)

func TestBadgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadgerStore(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	defer s.Close()

	dbID, err := s.CreateEntity(ctx, RootID, KindDatabase, "test", nil, false)
	if err != nil {
		t.Fatalf("CreateEntity db: %v", err)
	}
	tableID, err := s.CreateEntity(ctx, dbID, KindTable, "t", map[string]string{"engine": "BaseStorage"}, false)
	if err != nil {
		t.Fatalf("CreateEntity table: %v", err)
	}

	got, err := s.GetEntity(ctx, tableID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.Name != "t" || got.Attrs["engine"] != "BaseStorage" {
		t.Fatalf("unexpected entity: %+v", got)
	}

	if err := s.UpdatePartIndex(ctx, tableID, 0, map[uint64]uint64{1: 64}, 4); err != nil {
		t.Fatalf("UpdatePartIndex: %v", err)
	}
	entries, err := s.ReadPartIndex(ctx, tableID, 0, 0)
	if err != nil || len(entries) != 1 || entries[0].RowCount != 4 {
		t.Fatalf("ReadPartIndex mismatch: %v, %v", entries, err)
	}
}

func TestBadgerStoreReopenPreservesIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := OpenBadgerStore(ctx, dir)
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	dbID, err := s1.CreateEntity(ctx, RootID, KindDatabase, "persisted", nil, false)
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenBadgerStore(ctx, dir)
	if err != nil {
		t.Fatalf("reopen OpenBadgerStore: %v", err)
	}
	defer s2.Close()
	e, err := s2.GetEntity(ctx, dbID)
	if err != nil {
		t.Fatalf("GetEntity after reopen: %v", err)
	}
	if e.Name != "persisted" {
		t.Fatalf("unexpected entity after reopen: %+v", e)
	}
}

package partstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndTruncate(t *testing.T) {
	dir := t.TempDir()
	s := New([]string{dir})
	defer s.Close()

	post, err := s.Append(1, 7, 2, 0, []byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if post != 5 {
		t.Fatalf("want post=5, got post=%d", post)
	}

	post, err = s.Append(1, 7, 2, 5, []byte(" world"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if post != 11 {
		t.Fatalf("want post=11, got post=%d", post)
	}

	if err := s.TruncateTo(1, 7, 2, 5); err != nil {
		t.Fatalf("TruncateTo: %v", err)
	}
	path := ColumnFilePath([]string{dir}, 1, 7, 2)
	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(bs, []byte("hello")) {
		t.Fatalf("want %q after truncate, got %q", "hello", bs)
	}
}

func TestFillCoPaInfosReadsAppendedBytes(t *testing.T) {
	dir := t.TempDir()
	s := New([]string{dir})
	defer s.Close()

	if _, err := s.Append(9, -3, 1, 0, []byte("0123456789")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	infos, err := s.FillCoPaInfos(9, []uint64{1}, []PartitionSizes{
		{PartitionKey: -3, RowCount: 2, ColumnSizes: map[uint64]uint64{1: 10}},
	})
	if err != nil {
		t.Fatalf("FillCoPaInfos: %v", err)
	}
	if len(infos) != 1 || len(infos[0]) != 1 {
		t.Fatalf("unexpected shape: %v", infos)
	}
	got := infos[0][0]
	if got.LogicalSize != 10 || got.RowCount != 2 {
		t.Fatalf("unexpected CoPaInfo: %+v", got)
	}
	if !bytes.Equal(got.Addr, []byte("0123456789")) {
		t.Fatalf("unexpected mapped bytes: %q", got.Addr)
	}
}

func TestFillCoPaInfosGrowsCachedMapping(t *testing.T) {
	dir := t.TempDir()
	s := New([]string{dir})
	defer s.Close()

	small := bytes.Repeat([]byte("a"), 100)
	if _, err := s.Append(1, 0, 1, 0, small); err != nil {
		t.Fatalf("Append: %v", err)
	}
	infos, err := s.FillCoPaInfos(1, []uint64{1}, []PartitionSizes{
		{PartitionKey: 0, RowCount: 1, ColumnSizes: map[uint64]uint64{1: 100}},
	})
	if err != nil {
		t.Fatalf("FillCoPaInfos: %v", err)
	}
	if infos[0][0].LogicalSize != 100 {
		t.Fatalf("want logical size 100, got %d", infos[0][0].LogicalSize)
	}

	big := bytes.Repeat([]byte("b"), 2<<20) // bigger than mapGrowth, forces a remap
	if _, err := s.Append(1, 0, 1, 100, big); err != nil {
		t.Fatalf("Append: %v", err)
	}
	infos, err = s.FillCoPaInfos(1, []uint64{1}, []PartitionSizes{
		{PartitionKey: 0, RowCount: 2, ColumnSizes: map[uint64]uint64{1: uint64(100 + len(big))}},
	})
	if err != nil {
		t.Fatalf("FillCoPaInfos after growth: %v", err)
	}
	got := infos[0][0]
	if got.LogicalSize != int64(100+len(big)) {
		t.Fatalf("want logical size %d, got %d", 100+len(big), got.LogicalSize)
	}
	if !bytes.Equal(got.Addr[:100], small) || !bytes.Equal(got.Addr[100:], big) {
		t.Fatalf("grown mapping content mismatch")
	}
}

func TestColumnFilePathLayout(t *testing.T) {
	got := ColumnFilePath([]string{"/data"}, 3, -2, 5)
	want := filepath.Join("/data", "3", "-2", "5")
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestContentItemCollectionAndYear(t *testing.T) {
	it := ContentItem{ID: "GDL-1950-01-02-a-i0003"}
	if got := it.Collection(); got != "GDL" {
		t.Errorf("Collection() = %q, want GDL", got)
	}
	if got := it.Year(); got != "1950" {
		t.Errorf("Year() = %q, want 1950", got)
	}
}

func TestContentItemYearMissing(t *testing.T) {
	it := ContentItem{ID: "GDL"}
	if got := it.Year(); got != "" {
		t.Errorf("Year() = %q, want empty for id without year segment", got)
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{BuildDir: "/build", Version: "v1"}
	if got, want := l.Stage1File("GDL", "1950", ".jsonl.gz"), "/build/v1/stage1/GDL/GDL-1950.jsonl.gz"; got != want {
		t.Errorf("Stage1File = %q, want %q", got, want)
	}
	if got, want := l.Stage1CollectionStats("GDL"), "/build/v1/stage1/GDL.stats.json"; got != want {
		t.Errorf("Stage1CollectionStats = %q, want %q", got, want)
	}
	if got, want := l.Stage1AllStats(), "/build/v1/stage1.stats.json"; got != want {
		t.Errorf("Stage1AllStats = %q, want %q", got, want)
	}
	if got, want := l.Stage2File("GDL", "1950", ".jsonl.gz"), "/build/v1/stage2/GDL/GDL-1950.jsonl.gz"; got != want {
		t.Errorf("Stage2File = %q, want %q", got, want)
	}
	if got, want := l.Stage2Diagnostics("GDL", "1950"), "/build/v1/stage2/GDL/GDL-1950.diagnostics.json"; got != want {
		t.Errorf("Stage2Diagnostics = %q, want %q", got, want)
	}
}

func TestWriteAtomicNoPartialVisible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteAtomic(path, []byte(`{"a":1}`), "hostA"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":1}` {
		t.Errorf("got %q", b)
	}
	if _, err := os.Stat(path + ".working.hostA"); !os.IsNotExist(err) {
		t.Errorf("temp file should not remain after rename")
	}
}

func TestStampsClaimSkipsWhenDone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GDL-1950.jsonl.gz")

	if err := os.WriteFile(path+".done", []byte("hostA"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Stamps{Path: path, Host: "hostB"}
	skip, err := s.Claim(0)
	if err != nil {
		t.Fatal(err)
	}
	if !skip {
		t.Error("expected skip=true when .done exists")
	}
}

func TestStampsClaimAndComplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GDL-1950.jsonl.gz")
	s := Stamps{Path: path, Host: "hostA"}

	skip, err := s.Claim(0)
	if err != nil {
		t.Fatal(err)
	}
	if skip {
		t.Fatal("expected to claim a fresh unit")
	}

	owner, ok := s.Owner()
	if !ok || owner != "hostA" {
		t.Errorf("Owner() = %q, %v; want hostA, true", owner, ok)
	}

	other := Stamps{Path: path, Host: "hostB"}
	skip, err = other.Claim(0)
	if err != nil {
		t.Fatal(err)
	}
	if !skip {
		t.Error("expected second claim to be skipped while .running exists")
	}

	if err := s.Complete(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".done"); err != nil {
		t.Errorf(".done stamp missing after Complete: %v", err)
	}
	if _, err := os.Stat(path + ".running"); !os.IsNotExist(err) {
		t.Errorf(".running stamp should be gone after Complete")
	}
}

func TestStampsRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GDL-1951.jsonl.gz")
	s := Stamps{Path: path, Host: "hostA"}

	if _, err := s.Claim(0); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".running"); !os.IsNotExist(err) {
		t.Errorf(".running stamp should be removed after Release")
	}

	// A fresh claim should now succeed again (crash-recovery / re-run).
	skip, err := s.Claim(0)
	if err != nil {
		t.Fatal(err)
	}
	if skip {
		t.Error("expected re-claim to succeed after Release")
	}
}

func TestStampsStaleRunningExpires(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GDL-1952.jsonl.gz")
	runningPath := path + ".running"
	if err := os.WriteFile(runningPath, []byte("hostA"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(runningPath, old, old); err != nil {
		t.Fatal(err)
	}

	s := Stamps{Path: path, Host: "hostB"}
	skip, err := s.Claim(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if skip {
		t.Error("expected stale .running stamp to not block a new claim")
	}
}

func TestCanonicalLang(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantOK  bool
	}{
		{"de", "de", true},
		{" FR ", "fr", true},
		{"en-US", "en", true},
		{"", "", false},
		{"???", "", false},
	}
	for _, c := range cases {
		got, ok := CanonicalLang(c.in)
		if got != c.want || ok != c.wantOK {
			t.Errorf("CanonicalLang(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

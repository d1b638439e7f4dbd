package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panbanda/refmine/pkg/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := New(filepath.Join(tmpDir, "nested", "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "nested", "cache")); err != nil {
		t.Errorf("New() should create cache directory: %v", err)
	}

	c, err = New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}
}

func TestSetAndGetWithHash(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := c.SetWithHash("proj", "h1", []byte("data")); err != nil {
		t.Fatalf("SetWithHash() error: %v", err)
	}

	got, ok := c.GetWithHash("proj", "h1")
	if !ok || string(got) != "data" {
		t.Errorf("GetWithHash() = %q, %v", got, ok)
	}
	if _, ok := c.GetWithHash("proj", "h2"); ok {
		t.Error("GetWithHash() should miss on hash mismatch")
	}
	if _, ok := c.GetWithHash("other", "h1"); ok {
		t.Error("GetWithHash() should miss on unknown key")
	}
}

func TestExpiredEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1, true)
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := json.Marshal(Entry{Hash: "h", Timestamp: time.Now().Add(-2 * time.Hour), Data: []byte("x")})
	if err := os.WriteFile(c.keyPath("proj"), entry, 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.GetWithHash("proj", "h"); ok {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.keyPath("proj")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestCorruptEntry(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.keyPath("proj"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetWithHash("proj", "h"); ok {
		t.Error("corrupt entry should miss")
	}
}

func TestDisabledCache(t *testing.T) {
	c, _ := New("", 0, false)

	if err := c.SetWithHash("k", "h", []byte("v")); err != nil {
		t.Errorf("SetWithHash() on disabled cache: %v", err)
	}
	if _, ok := c.GetWithHash("k", "h"); ok {
		t.Error("disabled cache should always miss")
	}
	if err := c.PutTable("p", "h", models.NewMetricsTable("p")); err != nil {
		t.Errorf("PutTable() on disabled cache: %v", err)
	}
	if err := c.Invalidate("k"); err != nil {
		t.Errorf("Invalidate() on disabled cache: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache: %v", err)
	}
}

func TestTableRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	if err != nil {
		t.Fatal(err)
	}

	table := models.NewMetricsTable("demo")
	table.Records = append(table.Records, models.MetricsRecord{CommitHash: "abc", File: "A.java", ADD: 3})
	table.Seal()

	key := InputHash("head1", []string{"abc"}, "v1")
	if err := c.PutTable("demo", key, table); err != nil {
		t.Fatalf("PutTable() error: %v", err)
	}

	got, ok := c.GetTable("demo", key)
	if !ok {
		t.Fatal("GetTable() missed")
	}
	if got.Fingerprint != table.Fingerprint || len(got.Records) != 1 || got.Records[0].ADD != 3 {
		t.Errorf("GetTable() = %+v", got)
	}

	if _, ok := c.GetTable("demo", InputHash("head2", []string{"abc"}, "v1")); ok {
		t.Error("GetTable() should miss when HEAD moved")
	}
}

func TestInputHash(t *testing.T) {
	a := InputHash("h", []string{"x", "y"}, "s")
	if a != InputHash("h", []string{"x", "y"}, "s") {
		t.Error("InputHash() is not deterministic")
	}
	for _, other := range []string{
		InputHash("h", []string{"y", "x"}, "s"),
		InputHash("h", []string{"x"}, "s"),
		InputHash("h", []string{"x", "y"}, "t"),
		InputHash("g", []string{"x", "y"}, "s"),
	} {
		if other == a {
			t.Error("InputHash() collided for different inputs")
		}
	}
	if len(a) != 64 {
		t.Errorf("InputHash() length = %d, want 64", len(a))
	}
}

func TestInvalidateAndClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, _ := New(dir, 24, true)

	_ = c.SetWithHash("a", "h", []byte("1"))
	if err := c.Invalidate("a"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, ok := c.GetWithHash("a", "h"); ok {
		t.Error("invalidated entry should miss")
	}

	_ = c.SetWithHash("b", "h", []byte("2"))
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Clear() should remove the directory")
	}
}

package cache

import (
	"testing"
)

func TestManagerPromotesDiskHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()

	m, err := NewManager(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Put("k", []byte("pcm"))
	m.memory.Delete("k")

	if got, ok := m.Get("k"); !ok || string(got) != "pcm" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := m.memory.Get("k"); !ok {
		t.Error("disk hit was not promoted to memory")
	}

	m.Get("missing")
	s := m.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestManagerMemoryOnly(t *testing.T) {
	m, err := NewManager(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.disk != nil {
		t.Fatal("expected no disk level")
	}
	m.Put("k", []byte("v"))
	if _, ok := m.Get("k"); !ok {
		t.Error("expected hit")
	}
	m.Delete("k")
	if _, ok := m.Get("k"); ok {
		t.Error("expected miss after delete")
	}
	if err := m.Close(); err != nil {
		t.Error(err)
	}
}

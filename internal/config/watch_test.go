package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GroundAura/InventoryInjector/internal/util"
)

func TestWatcherCoalescesRuleFileEdits(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, util.NewDiscardLogger())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()
	w.debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(dir, "rules.yaml")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("rules: []\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case reason := <-w.Changes():
		if !strings.Contains(reason, "rules.yaml") {
			t.Fatalf("unexpected reason %q", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for change notification")
	}

	select {
	case reason := <-w.Changes():
		t.Fatalf("expected edits to be coalesced, got extra notification %q", reason)
	case <-time.After(400 * time.Millisecond):
	}
}

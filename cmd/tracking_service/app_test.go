package trackingservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/logger"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestOpenStoreSQLite(t *testing.T) {
	cfg, err := config.Parse([]byte("storage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(t.TempDir(), "t.db") + "\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	store, err := OpenStore(context.Background(), cfg, logger.NewWithWriter("test", discard{}))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Health.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMigrateSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "storage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "m.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	// twice: the schema is idempotent
	for i := 0; i < 2; i++ {
		if err := Migrate(context.Background(), cfgPath); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}
}

func TestConcurrencyLimit(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		release  = make(chan struct{})
	)
	h := withConcurrencyLimit(2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d, want <= 2", peak.Load())
	}
}

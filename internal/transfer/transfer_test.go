package transfer

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"ClassPresenter/internal/tube"
)

func writeBundle(t *testing.T, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.cpxo")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func runDownloader(t *testing.T, d *Downloader) <-chan error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("downloader did not finish")
	}
}

func TestServerToDownloader(t *testing.T) {
	ctx := context.Background()
	bus := tube.NewInproc()
	lecturer := bus.Create("lecturer")
	student := bus.Join("student")

	payload := bytes.Repeat([]byte("deck"), 4096)
	srv := NewServer(nil, lecturer, writeBundle(t, payload))
	if srv.State() != ServerIdle {
		t.Fatalf("state = %v", srv.State())
	}
	if err := srv.Start(ctx, "127.0.0.1:0", "127.0.0.1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(ctx) })
	if srv.State() != ServerServing {
		t.Fatalf("state = %v", srv.State())
	}

	dest := filepath.Join(t.TempDir(), "got.cpxo")
	var calls atomic.Int32
	d := NewDownloader(nil, student, dest, 10*time.Millisecond, func(p string) {
		calls.Add(1)
		if p != dest {
			t.Errorf("onDone path = %q", p)
		}
	})
	waitDone(t, runDownloader(t, d))

	if d.State() != Complete || calls.Load() != 1 {
		t.Fatalf("state = %v calls = %d", d.State(), calls.Load())
	}
	got, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("downloaded %d bytes, err %v", len(got), err)
	}
}

func TestDownloaderWaitsForOffer(t *testing.T) {
	ctx := context.Background()
	bus := tube.NewInproc()
	lecturer := bus.Create("lecturer")
	student := bus.Join("student")

	dest := filepath.Join(t.TempDir(), "got.cpxo")
	d := NewDownloader(nil, student, dest, 10*time.Millisecond, nil)
	done := runDownloader(t, d)

	deadline := time.Now().Add(2 * time.Second)
	for d.State() != AwaitingDataChannel {
		if time.Now().After(deadline) {
			t.Fatalf("never awaited a data channel, state %v", d.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv := NewServer(nil, lecturer, writeBundle(t, []byte("late")))
	if err := srv.Start(ctx, "127.0.0.1:0", "127.0.0.1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(ctx) })
	waitDone(t, done)
}

func TestDownloaderRetriesAndDiscardsPartialFiles(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)

	ctx := context.Background()
	bus := tube.NewInproc()
	lecturer := bus.Create("lecturer")
	student := bus.Join("student")
	lecturer.OfferDataChannel(ctx, tube.Offer{Service: Service, URL: ts.URL + DocumentPath})

	dir := t.TempDir()
	dest := filepath.Join(dir, "got.cpxo")
	d := NewDownloader(nil, student, dest, 10*time.Millisecond, nil)
	waitDone(t, runDownloader(t, d))

	if d.Attempts() != 3 {
		t.Fatalf("attempts = %d, want 3", d.Attempts())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "got.cpxo" {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestDownloaderIgnoresOffersFromNonInitiator(t *testing.T) {
	ctx := context.Background()
	bus := tube.NewInproc()
	bus.Create("lecturer")
	impostor := bus.Join("impostor")
	student := bus.Join("student")
	impostor.OfferDataChannel(ctx, tube.Offer{Service: Service, URL: "http://127.0.0.1:1/document"})

	d := NewDownloader(nil, student, filepath.Join(t.TempDir(), "x"), time.Hour, nil)
	if _, err := d.findOffer(ctx); err != errNoOffer {
		t.Fatalf("findOffer err = %v, want errNoOffer", err)
	}
}

func TestDownloaderStopsOnCancel(t *testing.T) {
	bus := tube.NewInproc()
	bus.Create("lecturer")
	student := bus.Join("student")
	d := NewDownloader(nil, student, filepath.Join(t.TempDir(), "x"), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run ignored cancellation")
	}
}

func TestMissingBundleIsUnavailable(t *testing.T) {
	srv := NewServer(nil, nil, filepath.Join(t.TempDir(), "absent"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentPath, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRefreshRewritesBundleBeforeServing(t *testing.T) {
	path := writeBundle(t, []byte("old"))
	srv := NewServer(nil, nil, path)
	srv.SetRefresh(func(context.Context) error {
		return os.WriteFile(path, []byte("fresh"), 0o644)
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentPath, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "fresh" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestFailedRefreshServesLastCopy(t *testing.T) {
	srv := NewServer(nil, nil, writeBundle(t, []byte("last")))
	srv.SetRefresh(func(context.Context) error { return context.DeadlineExceeded })
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentPath, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "last" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestShutdownReleasesPendingRefresh(t *testing.T) {
	ctx := context.Background()
	bus := tube.NewInproc()
	srv := NewServer(nil, bus.Create("lecturer"), writeBundle(t, []byte("deck")))
	entered := make(chan struct{})
	srv.SetRefresh(func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})
	if err := srv.Start(ctx, "127.0.0.1:0", "127.0.0.1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go http.Get(srv.URL())
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("request never reached refresh")
	}

	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

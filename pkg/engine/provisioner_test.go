package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

const testResource = "pisa_interface_list_to_df.py"

// resourceServer serves a fixed script body and counts downloads.
type resourceServer struct {
	*httptest.Server
	hits   atomic.Int32
	status int
}

func newResourceServer(t *testing.T) *resourceServer {
	t.Helper()
	rs := &resourceServer{status: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		if rs.status != http.StatusOK {
			http.Error(w, "unavailable", rs.status)
			return
		}
		_, _ = w.Write([]byte("print('transform')\n"))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func TestProvisioner_Ensure_FetchesOnce(t *testing.T) {
	dir := t.TempDir()
	srv := newResourceServer(t)
	p := NewProvisioner(dir, testResource, srv.URL+"/script.py", zerolog.Nop(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Ensure(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("expected 1 download, got %d", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, testResource))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print('transform')\n" {
		t.Errorf("resource content = %q", data)
	}
	if !p.Present() {
		t.Error("Present() = false after Ensure")
	}
}

func TestProvisioner_Ensure_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	srv := newResourceServer(t)
	srv.status = http.StatusServiceUnavailable
	p := NewProvisioner(dir, testResource, srv.URL, zerolog.Nop(), nil)

	if err := p.Ensure(context.Background()); !IsFetch(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed fetch left files: %v", entries)
	}
}

func TestProvisioner_Ensure_Unreachable(t *testing.T) {
	srv := newResourceServer(t)
	url := srv.URL
	srv.Close()

	p := NewProvisioner(t.TempDir(), testResource, url, zerolog.Nop(), nil)
	if err := p.Ensure(context.Background()); !IsFetch(err) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestProvisioner_Ensure_FileURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "upstream.py")
	if err := os.WriteFile(src, []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	p := NewProvisioner(dir, testResource, "file://"+filepath.ToSlash(src), zerolog.Nop(), nil)
	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	data, err := os.ReadFile(p.Path())
	if err != nil || string(data) != "local" {
		t.Errorf("resource = %q, %v", data, err)
	}
}

func TestProvisioner_Ensure_ExistingSkipsFetch(t *testing.T) {
	dir := t.TempDir()
	srv := newResourceServer(t)
	writeFile(t, dir, testResource, "cached")

	p := NewProvisioner(dir, testResource, srv.URL, zerolog.Nop(), nil)
	if err := p.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.hits.Load() != 0 {
		t.Error("existing resource was downloaded again")
	}
}

func TestProvisioner_Remove(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, testResource, "cached")
	p := NewProvisioner(dir, testResource, "http://unused.invalid", zerolog.Nop(), nil)

	removed, err := p.Remove(context.Background())
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	removed, err = p.Remove(context.Background())
	if err != nil || removed {
		t.Fatalf("second Remove() = %v, %v", removed, err)
	}
}

package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeS3 implements the handful of path-style S3 calls the publisher makes.
type fakeS3 struct {
	mu           sync.Mutex
	buckets      map[string]bool
	contentTypes map[string]string
	created      []string
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: make(map[string]bool), contentTypes: make(map[string]string)}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	_, _ = io.Copy(io.Discard, r.Body)

	switch {
	case r.Method == http.MethodHead && key == "":
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.buckets[bucket] = true
		f.created = append(f.created, bucket)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.contentTypes[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestS3Publisher(t *testing.T, srv *httptest.Server, createBucket bool) *S3Publisher {
	t.Helper()
	p, err := NewS3Publisher(S3Config{
		Endpoint:     strings.TrimPrefix(srv.URL, "http://"),
		Bucket:       "interfaces",
		Prefix:       "archives",
		Region:       "us-east-1",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UseSSL:       false,
		CreateBucket: createBucket,
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestS3Publisher_Publish(t *testing.T) {
	fake := newFakeS3("interfaces")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	p := newTestS3Publisher(t, srv, false)
	url, err := p.Publish(context.Background(), writeArchive(t, "tarball"))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := "s3://interfaces/archives/collection_of_interface_dfsMar0520241407.tar.gz"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	ct, ok := fake.contentTypes["interfaces/archives/collection_of_interface_dfsMar0520241407.tar.gz"]
	if !ok {
		t.Fatalf("object not uploaded, have %v", fake.contentTypes)
	}
	if ct != archiveContentType {
		t.Errorf("content type = %q", ct)
	}
	if len(fake.created) != 0 {
		t.Errorf("bucket should not be created, got %v", fake.created)
	}
}

func TestS3Publisher_CreatesBucket(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	p := newTestS3Publisher(t, srv, true)
	if _, err := p.Publish(context.Background(), writeArchive(t, "tarball")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.created) != 1 || fake.created[0] != "interfaces" {
		t.Errorf("created buckets = %v", fake.created)
	}
}

func TestS3Publisher_MissingBucket(t *testing.T) {
	srv := httptest.NewServer(newFakeS3())
	defer srv.Close()

	p := newTestS3Publisher(t, srv, false)
	if _, err := p.Publish(context.Background(), writeArchive(t, "tarball")); err == nil {
		t.Error("expected error uploading to a missing bucket")
	}
}

func TestS3Publisher_Key(t *testing.T) {
	p := &S3Publisher{cfg: S3Config{Prefix: "runs/2024"}}
	if got := p.Key("/data/collection.tar.gz"); got != "runs/2024/collection.tar.gz" {
		t.Errorf("Key() = %q", got)
	}
	p.cfg.Prefix = ""
	if got := p.Key("/data/collection.tar.gz"); got != "collection.tar.gz" {
		t.Errorf("Key() without prefix = %q", got)
	}
}

func TestS3Config_Validate(t *testing.T) {
	valid := S3Config{Endpoint: "s3.example.org", Bucket: "b", AccessKey: "a", SecretKey: "s"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	for name, cfg := range map[string]S3Config{
		"no endpoint": {Bucket: "b", AccessKey: "a", SecretKey: "s"},
		"no bucket":   {Endpoint: "e", AccessKey: "a", SecretKey: "s"},
		"no secret":   {Endpoint: "e", Bucket: "b", AccessKey: "a"},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

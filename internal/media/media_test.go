package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blobStoreStub struct {
	mu       sync.Mutex
	saved    map[string]string
	deleted  []string
	location string
	saveErr  error
	deleteCh chan string
	release  chan struct{}
	deadline bool
}

func (s *blobStoreStub) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	_, s.deadline = ctx.Deadline()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]string)
	}
	s.saved[name] = string(data)
	if s.location != "" {
		return s.location, nil
	}
	return "https://cdn.example.com/" + name, nil
}

func (s *blobStoreStub) Delete(_ context.Context, location string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, location)
	s.mu.Unlock()
	if s.deleteCh != nil {
		s.deleteCh <- location
	}
	if s.release != nil {
		<-s.release
	}
	return nil
}

func TestUploaderUpload(t *testing.T) {
	store := &blobStoreStub{}
	uploader := NewUploader(store, time.Second)

	location, err := uploader.Upload(context.Background(), "avatars", File{Name: "Me.PNG", Body: strings.NewReader("img")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(location, "https://cdn.example.com/avatars/") || !strings.HasSuffix(location, ".png") {
		t.Fatalf("unexpected location %q", location)
	}
	if !store.deadline {
		t.Fatal("expected upload to run with a deadline")
	}
}

func TestUploaderFailures(t *testing.T) {
	cases := map[string]struct {
		store *blobStoreStub
		file  File
		want  error
	}{
		"store error":    {store: &blobStoreStub{saveErr: errors.New("unreachable")}, file: File{Name: "a.png", Body: strings.NewReader("x")}},
		"empty location": {store: &blobStoreStub{location: " "}, file: File{Name: "a.png", Body: strings.NewReader("x")}, want: ErrEmptyLocation},
		"missing body":   {store: &blobStoreStub{}, file: File{Name: "a.png"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			uploader := NewUploader(tc.store, time.Second)
			_, err := uploader.Upload(context.Background(), "covers", tc.file)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	first := ObjectKey("/avatars/", `C:\Users\me\photo.JPG`)
	second := ObjectKey("avatars", "photo.jpg")
	if !strings.HasPrefix(first, "avatars/") || !strings.HasSuffix(first, ".jpg") {
		t.Fatalf("unexpected key %q", first)
	}
	if first == second {
		t.Fatal("expected unique keys")
	}
	if key := ObjectKey("", "noext"); strings.Contains(key, "/") || strings.Contains(key, ".") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestCleanerDeletesQueuedBlobs(t *testing.T) {
	store := &blobStoreStub{deleteCh: make(chan string, 2)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cleaner := NewCleaner(store, CleanerConfig{QueueSize: 2, Workers: 1}, logger)

	if err := cleaner.Enqueue(context.Background(), "https://cdn.example.com/old.png"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := cleaner.Enqueue(context.Background(), ""); err != nil {
		t.Fatalf("enqueue empty: %v", err)
	}

	select {
	case got := <-store.deleteCh:
		if got != "https://cdn.example.com/old.png" {
			t.Fatalf("unexpected deletion %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for deletion")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cleaner.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := cleaner.Enqueue(context.Background(), "late.png"); !errors.Is(err, ErrCleanerClosed) {
		t.Fatalf("expected closed error got %v", err)
	}
	if err := cleaner.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestCleanerShutdownDrainsQueue(t *testing.T) {
	store := &blobStoreStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cleaner := NewCleaner(store, CleanerConfig{QueueSize: 8, Workers: 1}, logger)

	for _, location := range []string{"a.png", "b.png", "c.png"} {
		if err := cleaner.Enqueue(context.Background(), location); err != nil {
			t.Fatalf("enqueue %s: %v", location, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cleaner.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.deleted) != 3 {
		t.Fatalf("expected 3 deletions got %v", store.deleted)
	}
}

func TestCleanerEnqueueDoesNotBlockWhenFull(t *testing.T) {
	store := &blobStoreStub{deleteCh: make(chan string, 4), release: make(chan struct{})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cleaner := NewCleaner(store, CleanerConfig{QueueSize: 1, Workers: 1}, logger)

	if err := cleaner.Enqueue(context.Background(), "a.png"); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	select {
	case <-store.deleteCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for worker to pick up a.png")
	}

	if err := cleaner.Enqueue(context.Background(), "b.png"); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cleaner.Enqueue(context.Background(), "c.png") }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrCleanerBusy) {
			t.Fatalf("expected busy error got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	close(store.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cleaner.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.deleted) != 2 {
		t.Fatalf("expected a.png and b.png to be deleted, got %v", store.deleted)
	}
}

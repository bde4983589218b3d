package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panodent/pano-gateway/internal/runpod"
	"github.com/panodent/pano-gateway/internal/storage"
)

// memStorage is an in-memory ObjectStorage used by service tests. It
// deliberately lacks the server-side Copy primitive; copyingMemStorage
// adds it, so both promoter copy paths can be exercised.
type memStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUploads map[string]bool
	uploadCount int
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects:     make(map[string][]byte),
		failUploads: make(map[string]bool),
	}
}

func (m *memStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUploads[key] {
		return fmt.Errorf("simulated upload failure for %s", key)
	}
	m.uploadCount++
	m.objects[key] = data
	return nil
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) GetURL(key string) string {
	return "https://store.test/" + key
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) EnsureBucket(context.Context) error { return nil }

func (m *memStorage) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *memStorage) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// copyingMemStorage adds the Copier primitive.
type copyingMemStorage struct {
	*memStorage
	copyCount int
}

func newCopyingMemStorage() *copyingMemStorage {
	return &copyingMemStorage{memStorage: newMemStorage()}
}

func (m *copyingMemStorage) Copy(_ context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("copy source %s not found", srcKey)
	}
	m.copyCount++
	m.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

var _ storage.ObjectStorage = (*memStorage)(nil)
var _ storage.Copier = (*copyingMemStorage)(nil)

// fakeRemote scripts the remote inference endpoint.
type fakeRemote struct {
	mu          sync.Mutex
	submitResp  *runpod.StatusResponse
	submitErr   error
	submitCalls int

	// statusScript is consumed one entry per Status call; the last
	// entry repeats once the script is exhausted.
	statusScript []statusStep
	statusCalls  int

	cancelErr   error
	cancelCalls int
}

type statusStep struct {
	resp *runpod.StatusResponse
	err  error
}

func (f *fakeRemote) Submit(context.Context, runpod.SubmitInput) (*runpod.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResp != nil {
		return f.submitResp, nil
	}
	return &runpod.StatusResponse{ID: "job-1", Status: runpod.StateInQueue}, nil
}

func (f *fakeRemote) Status(_ context.Context, jobID string) (*runpod.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusScript) == 0 {
		return &runpod.StatusResponse{ID: jobID, Status: runpod.StateInQueue}, nil
	}
	idx := f.statusCalls - 1
	if idx >= len(f.statusScript) {
		idx = len(f.statusScript) - 1
	}
	step := f.statusScript[idx]
	if step.err != nil {
		return nil, step.err
	}
	return step.resp, nil
}

func (f *fakeRemote) Cancel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelErr
}

// fakeClock drives the tracker's now/sleep seams: sleeping advances the
// clock instantly, so deadline behavior is deterministic and fast.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	log []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.log = append(c.log, d)
	return nil
}

// newTestTracker wires a tracker with fakes and deterministic time.
func newTestTracker(remote RemoteClient, store storage.ObjectStorage) (*Tracker, *fakeClock) {
	keys := storage.NewKeys("temp", "permanent")
	assembler := NewAssembler(store, keys, nil)
	tracker := NewTracker(remote, assembler, nil, TrackerConfig{
		PollInterval: 2 * time.Second,
		PollTimeout:  30 * time.Second,
		BackoffBase:  2 * time.Second,
		BackoffCap:   10 * time.Second,
	})
	clock := newFakeClock()
	tracker.now = clock.now
	tracker.sleep = clock.sleep
	return tracker, clock
}

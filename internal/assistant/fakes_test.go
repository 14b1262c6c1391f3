package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/farm-assistant/internal/weather"
)

type postedMessage struct {
	threadID string
	role     Role
	text     string
}

// fakeConversation is an in-memory assistant service. Run statuses are
// served from statuses in order; the last one repeats.
type fakeConversation struct {
	mu sync.Mutex

	threads  map[string]Thread
	messages map[string][]Message

	statuses  []RunStatus
	lastError *RunFailure
	runErr    error
	listErr   error
	postErr   error

	// latest overrides the newest-message listing when non-nil.
	latest []Message

	getRunCalls int
	posted      []postedMessage
	deleted     []string
	nextID      int
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{
		threads:  make(map[string]Thread),
		messages: make(map[string][]Message),
	}
}

func (f *fakeConversation) addThread(id string, createdAt time.Time, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[id] = Thread{ID: id, CreatedAt: createdAt}
	f.messages[id] = append(f.messages[id], msgs...)
}

func (f *fakeConversation) CreateThread(_ context.Context) (Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := Thread{ID: fmt.Sprintf("thread_%d", f.nextID), CreatedAt: time.Date(2024, 12, 14, 1, 0, 0, 0, time.UTC)}
	f.threads[t.ID] = t
	return t, nil
}

func (f *fakeConversation) GetThread(_ context.Context, threadID string) (Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return Thread{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	return t, nil
}

func (f *fakeConversation) DeleteThread(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadID]; !ok {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	delete(f.threads, threadID)
	f.deleted = append(f.deleted, threadID)
	return nil
}

func (f *fakeConversation) PostMessage(_ context.Context, threadID string, role Role, text string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return Message{}, f.postErr
	}
	f.posted = append(f.posted, postedMessage{threadID: threadID, role: role, text: text})
	m := Message{ID: fmt.Sprintf("msg_%d", len(f.posted)), Role: role, Text: text}
	f.messages[threadID] = append(f.messages[threadID], m)
	return m, nil
}

func (f *fakeConversation) StartRun(_ context.Context, threadID string) (Run, error) {
	return Run{ID: "run_1", ThreadID: threadID, Status: RunQueued}, nil
}

func (f *fakeConversation) GetRun(_ context.Context, threadID, runID string) (Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return Run{}, f.runErr
	}
	i := f.getRunCalls
	f.getRunCalls++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return Run{ID: runID, ThreadID: threadID, Status: f.statuses[i], LastError: f.lastError}, nil
}

func (f *fakeConversation) ListMessages(_ context.Context, threadID string, opts ListOptions) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if opts.Order == OrderDesc && f.latest != nil {
		return f.latest, nil
	}

	msgs := append([]Message(nil), f.messages[threadID]...)
	if opts.Order == OrderDesc {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[:opts.Limit]
	}
	return msgs, nil
}

func (f *fakeConversation) runQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getRunCalls
}

type fakeRegistry struct {
	records    map[string][]ThreadRecord
	registered []ThreadRecord
	updated    []ThreadRecord
	deleted    []string
	err        error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: make(map[string][]ThreadRecord)}
}

func (f *fakeRegistry) Register(_ context.Context, memberID string, record ThreadRecord) error {
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, record)
	f.records[memberID] = append(f.records[memberID], record)
	return nil
}

func (f *fakeRegistry) List(_ context.Context, memberID string) ([]ThreadRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[memberID], nil
}

func (f *fakeRegistry) Update(_ context.Context, _ string, record ThreadRecord) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, record)
	return nil
}

func (f *fakeRegistry) Delete(_ context.Context, _ string, threadID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, threadID)
	return nil
}

type fakeExtractor struct {
	address string
	err     error
	notes   []string
}

func (f *fakeExtractor) ExtractAddress(_ context.Context, notes []string) (string, error) {
	f.notes = notes
	return f.address, f.err
}

type fakeWeather struct {
	obs     weather.Observation
	err     error
	address string
}

func (f *fakeWeather) CurrentByAddress(_ context.Context, address string) (weather.Observation, error) {
	f.address = address
	return f.obs, f.err
}

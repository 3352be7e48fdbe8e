package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/source"
)

type mockAdapter struct {
	name       string
	candidates []event.RawCandidate
	err        error
	panicWith  any
	delay      time.Duration
	block      chan struct{}
	limit      int
	calls      atomic.Int32
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) DescriptionLimit() int { return m.limit }

func (m *mockAdapter) Fetch(ctx context.Context) ([]event.RawCandidate, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

var (
	_ source.Adapter            = (*mockAdapter)(nil)
	_ source.DescriptionLimiter = (*mockAdapter)(nil)
)

type mockEventRepository struct {
	mu        sync.Mutex
	events    map[string]event.Event
	order     []string
	nextID    int64
	failTitle string
	queryErr  error
}

func newMockEventRepository() *mockEventRepository {
	return &mockEventRepository{events: make(map[string]event.Event)}
}

func (m *mockEventRepository) UpsertEvent(ctx context.Context, e event.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Title == m.failTitle {
		return 0, errors.New("constraint violation")
	}

	key := e.Title + "|" + e.Organizer + "|" + e.SourceURL
	if existing, ok := m.events[key]; ok {
		e.ID = existing.ID
		m.events[key] = e
		return e.ID, nil
	}

	m.nextID++
	e.ID = m.nextID
	m.events[key] = e
	m.order = append(m.order, key)
	return e.ID, nil
}

func (m *mockEventRepository) QueryAll(ctx context.Context, opts database.QueryOptions) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queryErr != nil {
		return nil, m.queryErr
	}

	events := make([]event.Event, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		events = append(events, m.events[m.order[i]])
	}
	return events, nil
}

func (m *mockEventRepository) GetEventCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), nil
}

func (m *mockEventRepository) GetEventTypes(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type mockRunLogRepository struct {
	mu      sync.Mutex
	entries []database.RunLog
	err     error
}

func (m *mockRunLogRepository) AppendRunLog(ctx context.Context, entry database.RunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockRunLogRepository) GetRunLogs(ctx context.Context, limit int) ([]database.RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.RunLog(nil), m.entries...), nil
}

type mockWriter struct {
	snapshots []*event.Snapshot
	err       error
	panicWith any
}

func (m *mockWriter) Run(snapshot *event.Snapshot) error {
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.err != nil {
		return m.err
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

var (
	_ database.EventRepository  = (*mockEventRepository)(nil)
	_ database.RunLogRepository = (*mockRunLogRepository)(nil)
	_ SnapshotWriterInterface   = (*mockWriter)(nil)
)

func candidate(title, date, location string) event.RawCandidate {
	return event.RawCandidate{"title": title, "date": date, "location": location, "organizer": "Org " + title}
}

func newTestOrchestrator(adapters []source.Adapter, opts Options) (*Orchestrator, *mockEventRepository, *mockRunLogRepository, *mockWriter) {
	events := newMockEventRepository()
	logs := &mockRunLogRepository{}
	writer := &mockWriter{}
	return NewOrchestrator(adapters, event.NewNormalizer(400), events, logs, writer, opts), events, logs, writer
}

func TestOrchestratorRun(t *testing.T) {
	a := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{
		candidate("Demo Day", "2025-11-20", "Bangalore"),
		candidate("Pitch Night", "2025-10-05", "Delhi"),
		{"description": "no title here"},
	}}
	b := &mockAdapter{name: "beta", candidates: []event.RawCandidate{
		candidate("Grant Scheme", "", "Online"),
	}}

	o, repo, logs, writer := newTestOrchestrator([]source.Adapter{a, b}, Options{})

	state, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if state.Phase != PhaseDone {
		t.Errorf("Expected phase %s, got %s", PhaseDone, state.Phase)
	}
	if state.Published != 3 {
		t.Errorf("Expected 3 published events, got %d", state.Published)
	}
	if len(state.Sources) != 2 {
		t.Fatalf("Expected 2 source outcomes, got %d", len(state.Sources))
	}
	if state.Sources[0].Rejected != 1 {
		t.Errorf("Expected 1 rejected candidate, got %d", state.Sources[0].Rejected)
	}
	if state.Sources[0].Persisted != 2 {
		t.Errorf("Expected 2 persisted events, got %d", state.Sources[0].Persisted)
	}

	count, _ := repo.GetEventCount(context.Background())
	if count != 3 {
		t.Errorf("Expected 3 stored events, got %d", count)
	}

	if len(logs.entries) != 2 {
		t.Fatalf("Expected 2 run log entries, got %d", len(logs.entries))
	}
	for _, entry := range logs.entries {
		if entry.RunID != state.ID {
			t.Errorf("Expected run id %s, got %s", state.ID, entry.RunID)
		}
		if !entry.Success {
			t.Errorf("Expected source %s to succeed", entry.Source)
		}
	}

	if len(writer.snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(writer.snapshots))
	}
	snapshot := writer.snapshots[0]
	titles := []string{snapshot.Events[0].Title, snapshot.Events[1].Title, snapshot.Events[2].Title}
	expected := []string{"Pitch Night", "Demo Day", "Grant Scheme"}
	for i := range expected {
		if titles[i] != expected[i] {
			t.Errorf("Expected event %d to be %q, got %q", i, expected[i], titles[i])
		}
	}
	if len(snapshot.ScrapingSources) != 2 || snapshot.ScrapingSources[0] != "alpha" {
		t.Errorf("Expected scraping sources [alpha beta], got %v", snapshot.ScrapingSources)
	}
}

func TestOrchestratorAdapterIsolation(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tests := []struct {
		name    string
		adapter *mockAdapter
		kind    FailureKind
	}{
		{
			name:    "fetch error",
			adapter: &mockAdapter{name: "broken", err: errors.New("HTTP error: 503 Service Unavailable")},
			kind:    FailureFetch,
		},
		{
			name:    "panic",
			adapter: &mockAdapter{name: "panicky", panicWith: "nil map"},
			kind:    FailurePanic,
		},
		{
			name:    "timeout",
			adapter: &mockAdapter{name: "stuck", block: release},
			kind:    FailureTimeout,
		},
		{
			name:    "deadline error",
			adapter: &mockAdapter{name: "slow", err: context.DeadlineExceeded},
			kind:    FailureTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy := &mockAdapter{name: "healthy", candidates: []event.RawCandidate{candidate("Demo Day", "2025-11-20", "Pune")}}

			o, _, logs, writer := newTestOrchestrator(
				[]source.Adapter{tt.adapter, healthy},
				Options{SourceTimeout: 50 * time.Millisecond},
			)

			state, err := o.Run(context.Background())
			if err != nil {
				t.Fatalf("Expected run to succeed, got %v", err)
			}

			failed := state.Sources[0]
			if !failed.Failed() {
				t.Fatal("Expected first source to be marked failed")
			}
			if failed.FailureKind != tt.kind {
				t.Errorf("Expected failure kind %s, got %s", tt.kind, failed.FailureKind)
			}
			if state.Sources[1].Persisted != 1 {
				t.Errorf("Expected healthy source to persist 1 event, got %d", state.Sources[1].Persisted)
			}

			if logs.entries[0].Success {
				t.Error("Expected failed source run log to be unsuccessful")
			}
			if logs.entries[0].ErrorMessage == "" {
				t.Error("Expected failed source run log to carry an error message")
			}
			if len(writer.snapshots) != 1 || writer.snapshots[0].Count != 1 {
				t.Error("Expected a snapshot with the healthy source's event")
			}
		})
	}
}

func TestOrchestratorPersistFailure(t *testing.T) {
	a := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{
		candidate("Broken", "2025-01-01", ""),
		candidate("Fine", "2025-01-02", ""),
	}}

	o, repo, logs, _ := newTestOrchestrator([]source.Adapter{a}, Options{})
	repo.failTitle = "Broken"

	state, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}

	outcome := state.Sources[0]
	if outcome.PersistFailures != 1 {
		t.Errorf("Expected 1 persist failure, got %d", outcome.PersistFailures)
	}
	if outcome.Persisted != 1 {
		t.Errorf("Expected 1 persisted event, got %d", outcome.Persisted)
	}
	if !logs.entries[0].Success {
		t.Error("Expected source with a persisted event to be successful")
	}
}

func TestOrchestratorRunLogFailureDoesNotAbort(t *testing.T) {
	a := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{candidate("Demo Day", "", "")}}

	o, _, logs, writer := newTestOrchestrator([]source.Adapter{a}, Options{})
	logs.err = errors.New("disk full")

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}
	if len(writer.snapshots) != 1 {
		t.Error("Expected snapshot to be written")
	}
}

func TestOrchestratorPublishFailure(t *testing.T) {
	t.Run("writer error", func(t *testing.T) {
		a := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{candidate("Demo Day", "", "")}}
		o, _, _, writer := newTestOrchestrator([]source.Adapter{a}, Options{})
		writer.err = errors.New("read-only file system")

		state, err := o.Run(context.Background())

		var publishErr *PublishFailure
		if !errors.As(err, &publishErr) {
			t.Fatalf("Expected PublishFailure, got %v", err)
		}
		if state.Phase != PhaseFailed {
			t.Errorf("Expected phase %s, got %s", PhaseFailed, state.Phase)
		}
		if state.Sources[0].Persisted != 1 {
			t.Error("Expected persisted events to survive a publish failure")
		}
	})

	t.Run("query error", func(t *testing.T) {
		o, repo, _, writer := newTestOrchestrator(nil, Options{})
		repo.queryErr = errors.New("database is locked")

		_, err := o.Run(context.Background())

		var publishErr *PublishFailure
		if !errors.As(err, &publishErr) {
			t.Fatalf("Expected PublishFailure, got %v", err)
		}
		if len(writer.snapshots) != 0 {
			t.Error("Expected no snapshot to be written")
		}
	})
}

func TestOrchestratorEmptyRun(t *testing.T) {
	o, _, _, writer := newTestOrchestrator(nil, Options{})

	state, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if state.Published != 0 {
		t.Errorf("Expected 0 published events, got %d", state.Published)
	}
	if writer.snapshots[0].Events == nil {
		t.Error("Expected empty events list, got nil")
	}
}

func TestOrchestratorRegistrationOrder(t *testing.T) {
	adapters := []source.Adapter{
		&mockAdapter{name: "first", delay: 60 * time.Millisecond, candidates: []event.RawCandidate{candidate("A", "", "")}},
		&mockAdapter{name: "second", delay: 30 * time.Millisecond, candidates: []event.RawCandidate{candidate("B", "", "")}},
		&mockAdapter{name: "third", candidates: []event.RawCandidate{candidate("C", "", "")}},
	}

	o, _, logs, _ := newTestOrchestrator(adapters, Options{Concurrency: 3})

	state, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []string{"first", "second", "third"}
	for i, name := range expected {
		if state.Sources[i].Source != name {
			t.Errorf("Expected outcome %d to be %s, got %s", i, name, state.Sources[i].Source)
		}
		if logs.entries[i].Source != name {
			t.Errorf("Expected run log %d to be %s, got %s", i, name, logs.entries[i].Source)
		}
	}
}

func TestOrchestratorDescriptionLimit(t *testing.T) {
	long := make([]byte, 50)
	for i := range long {
		long[i] = 'x'
	}
	a := &mockAdapter{name: "alpha", limit: 10, candidates: []event.RawCandidate{
		{"title": "Demo Day", "description": string(long)},
	}}

	o, repo, _, _ := newTestOrchestrator([]source.Adapter{a}, Options{})
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	events, _ := repo.QueryAll(context.Background(), database.QueryOptions{})
	if len(events[0].Description) != 10 {
		t.Errorf("Expected description of 10 characters, got %d", len(events[0].Description))
	}
}

func TestOrchestratorRunInProgress(t *testing.T) {
	release := make(chan struct{})
	a := &mockAdapter{name: "slow", block: release}

	o, _, _, _ := newTestOrchestrator([]source.Adapter{a}, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for a.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	running, _ := o.Status()
	if !running {
		t.Error("Expected orchestrator to report a run in progress")
	}

	if _, err := o.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}

	close(release)
	<-done

	running, last := o.Status()
	if running {
		t.Error("Expected no run in progress")
	}
	if last == nil || last.Phase != PhaseDone {
		t.Error("Expected last run to be recorded as done")
	}
}

func TestOrchestratorWithSQLite(t *testing.T) {
	dir := t.TempDir()

	db, err := database.NewConnection(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	// Same event listed by two sources with different organizers
	alpha := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{
		{"title": "Founders Meetup", "date": "November 20, 2025", "location": "Hyderabad", "organizer": "T-Hub"},
		{"title": "Seed Fund Scheme", "location": "Online", "type": "government_scheme"},
	}}
	beta := &mockAdapter{name: "beta", candidates: []event.RawCandidate{
		{"title": "founders meetup ", "date": "2025-11-20", "location": "hyderabad", "organizer": "Inc42"},
	}}

	writer := event.NewSnapshotWriter(filepath.Join(dir, "frontend", "events.json"))
	o := NewOrchestrator(
		[]source.Adapter{alpha, beta},
		event.NewNormalizer(400),
		database.NewEventRepository(db),
		database.NewRunLogRepository(db),
		writer,
		Options{Concurrency: 2},
	)

	for i := 0; i < 2; i++ {
		if _, err := o.Run(context.Background()); err != nil {
			t.Fatalf("Run %d failed: %v", i+1, err)
		}
	}

	snapshot, err := event.ReadSnapshot(writer.Path())
	if err != nil {
		t.Fatal(err)
	}

	if snapshot.DeduplicationStats.InitialCount != 3 {
		t.Errorf("Expected 3 stored events after repeated runs, got %d", snapshot.DeduplicationStats.InitialCount)
	}
	if snapshot.Count != 2 {
		t.Errorf("Expected 2 published events, got %d", snapshot.Count)
	}
	if snapshot.DeduplicationStats.DuplicatesRemoved != 1 {
		t.Errorf("Expected 1 duplicate removed, got %d", snapshot.DeduplicationStats.DuplicatesRemoved)
	}
	if snapshot.Events[0].Date != "2025-11-20" {
		t.Errorf("Expected dated event first, got %q", snapshot.Events[0].Date)
	}
	if snapshot.Events[1].Type != "government_scheme" {
		t.Errorf("Expected type alias government_scheme, got %q", snapshot.Events[1].Type)
	}

	logs, err := database.NewRunLogRepository(db).GetRunLogs(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 4 {
		t.Errorf("Expected 4 run log entries, got %d", len(logs))
	}
}

func TestOrchestratorRecoversRunningFlagAfterPanic(t *testing.T) {
	a := &mockAdapter{name: "alpha", candidates: []event.RawCandidate{candidate("Demo Day", "", "")}}
	o, _, _, writer := newTestOrchestrator([]source.Adapter{a}, Options{})
	writer.panicWith = "writer exploded"

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected writer panic to propagate")
			}
		}()
		o.Run(context.Background())
	}()

	if running, _ := o.Status(); running {
		t.Error("Expected no run in progress after a panic")
	}

	writer.panicWith = nil
	if _, err := o.Run(context.Background()); err != nil {
		t.Errorf("Expected next run to succeed, got %v", err)
	}
}

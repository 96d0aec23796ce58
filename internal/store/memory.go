package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

// Memory is an in-memory SignalStore and TaskDirectory with the same
// observable semantics as the Mongo client, including snapshot-style
// at-least-once subscription delivery. Used by tests and dev runs.
type Memory struct {
	mu         sync.Mutex
	calls      []domain.CallRecord
	active     []domain.ActiveCallSession
	tasks      map[string]domain.Task
	nextSub    int
	answerSubs map[int]memSub[domain.CallRecord]
	statusSubs map[int]memSub[domain.ActiveCallSession]
}

type memSub[T any] struct {
	code string
	fn   func(T)
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:      make(map[string]domain.Task),
		answerSubs: make(map[int]memSub[domain.CallRecord]),
		statusSubs: make(map[int]memSub[domain.ActiveCallSession]),
	}
}

// SeedTask adds a task row for authorization lookups.
func (m *Memory) SeedTask(task domain.Task) {
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()
}

func (m *Memory) CreateCallRecord(_ context.Context, rec *domain.CallRecord) (string, error) {
	m.mu.Lock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.calls = append(m.calls, *rec)
	code := rec.Code
	m.mu.Unlock()

	if rec.Type == domain.SignalAnswer {
		m.notifyAnswers(code)
	}
	return rec.ID, nil
}

func (m *Memory) FindOffer(_ context.Context, code string) (*domain.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.calls {
		if m.calls[i].Code == code && m.calls[i].Type == domain.SignalOffer {
			rec := m.calls[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) CreateActiveCall(_ context.Context, sess *domain.ActiveCallSession) (string, error) {
	m.mu.Lock()
	for i := range m.active {
		if m.active[i].Code == sess.Code && m.active[i].Status == domain.CallPending {
			m.mu.Unlock()
			return "", domain.ErrCodeTaken
		}
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	m.active = append(m.active, *sess)
	code := sess.Code
	m.mu.Unlock()

	m.notifyStatus(code)
	return sess.ID, nil
}

func (m *Memory) SetReceiver(_ context.Context, code, userID string) error {
	m.mu.Lock()
	for i := range m.active {
		if m.active[i].Code == code {
			m.active[i].Receiver = userID
		}
	}
	m.mu.Unlock()

	m.notifyStatus(code)
	return nil
}

func (m *Memory) EndActiveCall(_ context.Context, code string, endedAt time.Time) error {
	m.mu.Lock()
	for i := range m.active {
		if m.active[i].Code == code {
			m.active[i].Status = domain.CallEnded
			if m.active[i].EndedAt == nil {
				t := endedAt.UTC()
				m.active[i].EndedAt = &t
			}
		}
	}
	m.mu.Unlock()

	m.notifyStatus(code)
	return nil
}

func (m *Memory) SubscribeAnswers(_ context.Context, code string, fn func(domain.CallRecord)) (domain.Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.answerSubs[id] = memSub[domain.CallRecord]{code: code, fn: fn}
	m.mu.Unlock()

	m.notifyAnswers(code)
	return func() {
		m.mu.Lock()
		delete(m.answerSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) SubscribeStatus(_ context.Context, code string, fn func(domain.ActiveCallSession)) (domain.Unsubscribe, error) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.statusSubs[id] = memSub[domain.ActiveCallSession]{code: code, fn: fn}
	m.mu.Unlock()

	m.notifyStatus(code)
	return func() {
		m.mu.Lock()
		delete(m.statusSubs, id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) FindTask(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

// CallRecords returns a copy of all call records, for tests.
func (m *Memory) CallRecords() []domain.CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CallRecord, len(m.calls))
	copy(out, m.calls)
	return out
}

// ActiveCall returns the rendezvous row for code, for tests.
func (m *Memory) ActiveCall(code string) (domain.ActiveCallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.active {
		if m.active[i].Code == code {
			return m.active[i], true
		}
	}
	return domain.ActiveCallSession{}, false
}

// notifyAnswers replays every matching answer record to every matching
// subscriber. Replaying the full set mirrors the snapshot semantics of the
// real store and deliberately produces duplicate deliveries.
func (m *Memory) notifyAnswers(code string) {
	m.mu.Lock()
	var recs []domain.CallRecord
	for i := range m.calls {
		if m.calls[i].Code == code && m.calls[i].Type == domain.SignalAnswer {
			recs = append(recs, m.calls[i])
		}
	}
	var fns []func(domain.CallRecord)
	for _, sub := range m.answerSubs {
		if sub.code == code {
			fns = append(fns, sub.fn)
		}
	}
	m.mu.Unlock()

	// Callbacks run outside the lock: they may re-enter the store.
	for _, fn := range fns {
		for _, rec := range recs {
			fn(rec)
		}
	}
}

func (m *Memory) notifyStatus(code string) {
	m.mu.Lock()
	var rows []domain.ActiveCallSession
	for i := range m.active {
		if m.active[i].Code == code {
			rows = append(rows, m.active[i])
		}
	}
	var fns []func(domain.ActiveCallSession)
	for _, sub := range m.statusSubs {
		if sub.code == code {
			fns = append(fns, sub.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		for _, row := range rows {
			fn(row)
		}
	}
}

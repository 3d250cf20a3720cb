package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/interval"
	"github.com/Freeeeeet/tutoring_scheduler/internal/lock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
)

// ── Mock TxManager ──

type mockTx struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

// ── Mock AvailabilityRepository ──

type mockSlotRepo struct {
	mu     sync.Mutex
	nextID int64
	slots  map[int64]*model.AvailabilitySlot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[int64]*model.AvailabilitySlot)}
}

func (m *mockSlotRepo) Create(_ context.Context, slot *model.AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	slot.ID = m.nextID
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	stored := *slot
	m.slots[slot.ID] = &stored
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id int64) (*model.AvailabilitySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[id]; ok {
		found := *s
		return &found, nil
	}
	return nil, nil
}

func (m *mockSlotRepo) filter(match func(*model.AvailabilitySlot) bool) []*model.AvailabilitySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.AvailabilitySlot
	for _, s := range m.slots {
		if match(s) {
			found := *s
			result = append(result, &found)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockSlotRepo) ListByTutor(_ context.Context, tutorID int64) ([]*model.AvailabilitySlot, error) {
	return m.filter(func(s *model.AvailabilitySlot) bool { return s.TutorID == tutorID }), nil
}

func (m *mockSlotRepo) ListByTutorAndDay(_ context.Context, tutorID int64, day model.DayOfWeek) ([]*model.AvailabilitySlot, error) {
	return m.filter(func(s *model.AvailabilitySlot) bool {
		return s.TutorID == tutorID && s.DayOfWeek == day
	}), nil
}

func (m *mockSlotRepo) Update(_ context.Context, slot *model.AvailabilitySlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; !ok {
		return repository.ErrNotFound
	}
	slot.UpdatedAt = time.Now()
	stored := *slot
	m.slots[slot.ID] = &stored
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

// ── Mock UnavailableDateRepository ──

type mockBlockedRepo struct {
	mu     sync.Mutex
	nextID int64
	dates  map[int64]*model.UnavailableDate
}

func newMockBlockedRepo() *mockBlockedRepo {
	return &mockBlockedRepo{dates: make(map[int64]*model.UnavailableDate)}
}

func (m *mockBlockedRepo) Create(_ context.Context, d *model.UnavailableDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	stored := *d
	m.dates[d.ID] = &stored
	return nil
}

func (m *mockBlockedRepo) GetByID(_ context.Context, id int64) (*model.UnavailableDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.dates[id]; ok {
		found := *d
		return &found, nil
	}
	return nil, nil
}

func (m *mockBlockedRepo) filter(match func(*model.UnavailableDate) bool) []*model.UnavailableDate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.UnavailableDate
	for _, d := range m.dates {
		if match(d) {
			found := *d
			result = append(result, &found)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockBlockedRepo) ListByTutor(_ context.Context, tutorID int64) ([]*model.UnavailableDate, error) {
	return m.filter(func(d *model.UnavailableDate) bool { return d.TutorID == tutorID }), nil
}

func (m *mockBlockedRepo) ListByTutorAndDate(_ context.Context, tutorID int64, date time.Time) ([]*model.UnavailableDate, error) {
	return m.filter(func(d *model.UnavailableDate) bool {
		return d.TutorID == tutorID && d.Date.Equal(date)
	}), nil
}

func (m *mockBlockedRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.dates, id)
	return nil
}

// ── Mock SessionRepository ──

// mockSessionRepo повторяет ограничение исключения базы: пересекающиеся активные занятия не записываются
type mockSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*model.Session

	// allowOverlaps отключает ограничение: от пересечений защищает только сервис
	allowOverlaps bool
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[int64]*model.Session)}
}

func (m *mockSessionRepo) violatesExclusion(s *model.Session) bool {
	if m.allowOverlaps || s.Status == model.SessionStatusCancelled {
		return false
	}
	for _, other := range m.sessions {
		if other.ID == s.ID || other.TutorID != s.TutorID || other.Status == model.SessionStatusCancelled {
			continue
		}
		if interval.Overlaps(other.StartTime, other.EndTime, s.StartTime, s.EndTime) {
			return true
		}
	}
	return false
}

func (m *mockSessionRepo) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.violatesExclusion(session) {
		return repository.ErrOverlap
	}
	m.nextID++
	session.ID = m.nextID
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id int64) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		found := *s
		return &found, nil
	}
	return nil, nil
}

func (m *mockSessionRepo) Update(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.violatesExclusion(session) {
		return repository.ErrOverlap
	}
	session.UpdatedAt = time.Now()
	stored := *session
	m.sessions[session.ID] = &stored
	return nil
}

func (m *mockSessionRepo) UpdateStatus(_ context.Context, id int64, from, to model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return repository.ErrNotFound
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return nil
}

func (m *mockSessionRepo) Cancel(_ context.Context, id int64, from model.SessionStatus, actorID int64, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return repository.ErrNotFound
	}
	s.Status = model.SessionStatusCancelled
	s.CancelledBy = &actorID
	s.CancellationReason = reason
	s.UpdatedAt = time.Now()
	return nil
}

func (m *mockSessionRepo) filter(match func(*model.Session) bool) []*model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Session
	for _, s := range m.sessions {
		if match(s) {
			found := *s
			result = append(result, &found)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result
}

func (m *mockSessionRepo) FindOverlapping(_ context.Context, tutorID int64, date, start, end time.Time, excludeID int64) ([]*model.Session, error) {
	return m.filter(func(s *model.Session) bool {
		return s.TutorID == tutorID &&
			s.Date.Equal(date) &&
			s.ID != excludeID &&
			s.Status != model.SessionStatusCancelled &&
			interval.Overlaps(s.StartTime, s.EndTime, start, end)
	}), nil
}

func (m *mockSessionRepo) ListByTutor(_ context.Context, tutorID int64) ([]*model.Session, error) {
	return m.filter(func(s *model.Session) bool { return s.TutorID == tutorID }), nil
}

func (m *mockSessionRepo) ListByChild(_ context.Context, childID int64) ([]*model.Session, error) {
	return m.filter(func(s *model.Session) bool { return s.ChildID == childID }), nil
}

func (m *mockSessionRepo) ListByChildIDs(_ context.Context, childIDs []int64) ([]*model.Session, error) {
	ids := make(map[int64]bool, len(childIDs))
	for _, id := range childIDs {
		ids[id] = true
	}
	return m.filter(func(s *model.Session) bool { return ids[s.ChildID] }), nil
}

func (m *mockSessionRepo) ListByDate(_ context.Context, date time.Time, statuses []model.SessionStatus) ([]*model.Session, error) {
	return m.filter(func(s *model.Session) bool {
		if !s.Date.Equal(date) {
			return false
		}
		for _, status := range statuses {
			if s.Status == status {
				return true
			}
		}
		return false
	}), nil
}

// ── Mock Directory ──

type mockDirectory struct {
	tutors   map[int64]bool
	subjects map[int64]bool
	grades   map[int64]bool
	parentOf map[int64]int64 // child -> parent
	users    map[int64]*model.User
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		tutors:   make(map[int64]bool),
		subjects: make(map[int64]bool),
		grades:   make(map[int64]bool),
		parentOf: make(map[int64]int64),
		users:    make(map[int64]*model.User),
	}
}

func (m *mockDirectory) ChildBelongsToParent(_ context.Context, childID, parentID int64) (bool, error) {
	p, ok := m.parentOf[childID]
	return ok && p == parentID, nil
}

func (m *mockDirectory) ChildrenOfParent(_ context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	for child, parent := range m.parentOf {
		if parent == parentID {
			ids = append(ids, child)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockDirectory) ParentOfChild(_ context.Context, childID int64) (int64, error) {
	if p, ok := m.parentOf[childID]; ok {
		return p, nil
	}
	return 0, repository.ErrNotFound
}

func (m *mockDirectory) TutorExists(_ context.Context, tutorID int64) (bool, error) {
	return m.tutors[tutorID], nil
}

func (m *mockDirectory) SubjectExists(_ context.Context, subjectID int64) (bool, error) {
	return m.subjects[subjectID], nil
}

func (m *mockDirectory) GradeExists(_ context.Context, gradeID int64) (bool, error) {
	return m.grades[gradeID], nil
}

func (m *mockDirectory) GetUser(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		found := *u
		return &found, nil
	}
	return nil, nil
}

func (m *mockDirectory) GetUserByTelegramChat(_ context.Context, chatID int64) (*model.User, error) {
	for _, u := range m.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			found := *u
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockDirectory) LinkTelegramChat(_ context.Context, userID, chatID int64) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range m.users {
		if other.TelegramChatID != nil && *other.TelegramChatID == chatID {
			other.TelegramChatID = nil
		}
	}
	u.TelegramChatID = &chatID
	return nil
}

// ── Recording Notifier ──

type sentEvent struct {
	UserID int64
	Event  Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{UserID: userID, Event: event})
	return n.err
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

func (n *recordingNotifier) recipients(eventType EventType) []int64 {
	var ids []int64
	for _, e := range n.sent() {
		if e.Event.Type == eventType {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

// move сдвигает сохранённое занятие на days дней, как это сделал бы параллельный перенос
func (m *mockSessionRepo) move(id int64, days int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	s.Date = s.Date.AddDate(0, 0, days)
	s.StartTime = s.StartTime.AddDate(0, 0, days)
	s.EndTime = s.EndTime.AddDate(0, 0, days)
}

// ── Recording Locker ──

// recordingLocker запоминает захваченные ключи и знает, какие из них удерживаются сейчас
type recordingLocker struct {
	inner lock.Locker

	// beforeLock вызывается до захвата, пока блокировка ещё не получена
	beforeLock func(key string)

	mu   sync.Mutex
	keys []string
	held map[string]int
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{inner: lock.NewMemory(), held: make(map[string]int)}
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.beforeLock != nil {
		l.beforeLock(key)
	}
	unlock, err := l.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.held[key]++
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		l.held[key]--
		l.mu.Unlock()
		unlock()
	}, nil
}

func (l *recordingLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key] > 0
}

func (l *recordingLocker) lockedKeys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

// lockCheckingSessionRepo отказывает в записи занятия, если его (репетитор, дата) не заблокированы
type lockCheckingSessionRepo struct {
	*mockSessionRepo
	locker *recordingLocker
}

func (r *lockCheckingSessionRepo) requireLock(session *model.Session) error {
	key := lock.TutorDayKey(session.TutorID, session.Date)
	if !r.locker.isHeld(key) {
		return fmt.Errorf("write of session %d without lock %s", session.ID, key)
	}
	return nil
}

func (r *lockCheckingSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if err := r.requireLock(session); err != nil {
		return err
	}
	return r.mockSessionRepo.Create(ctx, session)
}

func (r *lockCheckingSessionRepo) Update(ctx context.Context, session *model.Session) error {
	if err := r.requireLock(session); err != nil {
		return err
	}
	return r.mockSessionRepo.Update(ctx, session)
}

// racingSessionRepo перед первой записью вставляет занятие другого экземпляра сервиса
// в то же время, минуя проверки. Запись затем падает на ограничении исключения.
type racingSessionRepo struct {
	*mockSessionRepo
	competitor *model.Session
	once       sync.Once
}

func (r *racingSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.once.Do(func() {
		competitor := *session
		_ = r.mockSessionRepo.Create(ctx, &competitor)
		r.competitor = &competitor
	})
	return r.mockSessionRepo.Create(ctx, session)
}

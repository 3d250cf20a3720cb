// Package lock сериализует запись расписания по ключу (репетитор, дата).
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Locker захватывает именованную блокировку. Возвращённую функцию нужно вызвать ровно один раз.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TutorDayKey ключ блокировки для записи к репетитору на дату
func TutorDayKey(tutorID int64, date time.Time) string {
	return fmt.Sprintf("tutor:%d:%s", tutorID, date.Format(time.DateOnly))
}

// Memory блокировки внутри одного процесса
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	ch      chan struct{} // буфер 1: значение в канале означает "захвачено"
	waiters int
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memoryLock)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.waiters++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l, false)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, l, true) })
	}, nil
}

func (m *Memory) release(key string, l *memoryLock, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held {
		<-l.ch
	}
	l.waiters--
	if l.waiters == 0 {
		delete(m.locks, key)
	}
}

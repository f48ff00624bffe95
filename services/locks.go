package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LockKey benennt die identifizierenden Felder eines Tasks, z.B. {"pk": 17}.
// Die Serialisierung sortiert die Feldnamen, damit äquivalente Keys unabhängig
// von der Reihenfolge auf dieselbe Lock-Identität abbilden.
type LockKey map[string]any

// String serialisiert den Key deterministisch.
func (k LockKey) String() string {
	fields := make([]string, 0, len(k))
	for field := range k {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", field, k[field])
	}
	return b.String()
}

// Ticket belegt die exklusive Zuteilung für ein (Task, Key)-Paar. Es bleibt
// gültig bis zum Release oder bis zum Ablauf des Timeouts.
type Ticket struct {
	identity string
	token    string
}

type lockEntry struct {
	token      string
	acquiredAt time.Time
	timeout    time.Duration // 0 = unbegrenzt
}

func (e *lockEntry) expired(now time.Time) bool {
	return e.timeout > 0 && now.Sub(e.acquiredAt) >= e.timeout
}

// TaskLockManager hält die prozessweite Lock-Tabelle. Pro (Task, Key) läuft
// höchstens eine Ausführung; abgelaufene Locks gelten als frei, damit ein
// abgestürzter Worker keinen Key dauerhaft blockiert.
type TaskLockManager struct {
	mu     sync.Mutex
	locks  map[string]*lockEntry
	logger *zap.Logger
}

// NewTaskLockManager erstellt eine leere Lock-Tabelle.
func NewTaskLockManager(logger *zap.Logger) *TaskLockManager {
	return &TaskLockManager{
		locks:  make(map[string]*lockEntry),
		logger: logger,
	}
}

// Acquire versucht, das Lock für (task, key) zu nehmen. Prüfung und Eintrag
// passieren unter einem Mutex als einzelner Check-and-Set; Verlierer bekommen
// sofort ok=false und warten nie.
func (m *TaskLockManager) Acquire(task string, key LockKey, timeout time.Duration) (*Ticket, bool) {
	identity := task + ":" + key.String()
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, held := m.locks[identity]; held && !entry.expired(now) {
		return nil, false
	}

	token := uuid.NewString()
	m.locks[identity] = &lockEntry{token: token, acquiredAt: now, timeout: timeout}
	return &Ticket{identity: identity, token: token}, true
}

// Release gibt ein Ticket zurück. Abgelaufene oder bereits freigegebene
// Tickets sind ein No-op; ein veraltetes Ticket kann ein inzwischen neu
// vergebenes Lock nicht freigeben (Token-Abgleich).
func (m *TaskLockManager) Release(t *Ticket) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, held := m.locks[t.identity]; held && entry.token == t.token {
		delete(m.locks, t.identity)
	}
}

// RunGuarded führt fn unter dem Lock aus. Bei Contention wird fn nicht
// aufgerufen und (false, nil) zurückgegeben; der Aufrufer unterscheidet so
// "gelaufen" von "übersprungen", ohne einen Fehler zu sehen. Das Lock wird
// auf jedem Austrittspfad freigegeben.
func (m *TaskLockManager) RunGuarded(task string, key LockKey, timeout time.Duration, fn func() error) (bool, error) {
	ticket, ok := m.Acquire(task, key, timeout)
	if !ok {
		m.logger.Debug("Task already running, skipped",
			zap.String("task", task),
			zap.String("key", key.String()))
		return false, nil
	}
	defer m.Release(ticket)

	return true, fn()
}

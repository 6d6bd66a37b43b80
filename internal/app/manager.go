package app

import (
	"sync"

	"github.com/avoskov/huddle/internal/config"
	"github.com/avoskov/huddle/internal/domain"
)

// EngineInfo is a read-only listing entry for one managed engine.
type EngineInfo struct {
	MeetingID    domain.MeetingID `json:"meeting_id"`
	State        string           `json:"state"`
	Participants int              `json:"participants"`
}

// Manager hands out at most one engine per meeting id. The factory builds
// a fresh Deps per engine since transports are single-session.
type Manager struct {
	mu      sync.RWMutex
	cfg     *config.Config
	factory func() Deps
	engines map[domain.MeetingID]*Engine
}

func NewManager(cfg *config.Config, factory func() Deps) *Manager {
	return &Manager{
		cfg:     cfg,
		factory: factory,
		engines: make(map[domain.MeetingID]*Engine),
	}
}

func (m *Manager) GetOrCreate(meetingID domain.MeetingID) *Engine {
	m.mu.RLock()
	eng, ok := m.engines[meetingID]
	m.mu.RUnlock()
	if ok {
		return eng
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if eng, ok = m.engines[meetingID]; ok {
		return eng
	}
	eng = NewEngine(m.cfg, m.factory())
	m.engines[meetingID] = eng
	return eng
}

func (m *Manager) List() []EngineInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EngineInfo, 0, len(m.engines))
	for id, eng := range m.engines {
		out = append(out, EngineInfo{
			MeetingID:    id,
			State:        eng.State().String(),
			Participants: len(eng.Snapshot().Participants),
		})
	}
	return out
}

// Stop tears the engine down and forgets it.
func (m *Manager) Stop(meetingID domain.MeetingID) {
	m.mu.Lock()
	eng, ok := m.engines[meetingID]
	if ok {
		delete(m.engines, meetingID)
	}
	m.mu.Unlock()
	if ok {
		eng.Leave()
	}
}

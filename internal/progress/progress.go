// Package progress broadcasts transfer progress events to connected
// WebSocket clients so the UI can render live download state.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchbox/fetchbox/internal/websocket"
)

// Status represents the current state of a tracked transfer.
type Status string

const (
	StatusRequesting Status = "requesting"
	StatusStreaming  Status = "streaming"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Indeterminate is the percent value used when the total size is unknown.
const Indeterminate = -1

// Transfer is one tracked download as broadcast to clients.
type Transfer struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        Status     `json:"status"`
	ReceivedBytes int64      `json:"receivedBytes"`
	TotalBytes    int64      `json:"totalBytes"` // -1 when unknown
	Percent       int        `json:"percent"`    // 0-100, -1 for indeterminate
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Manager tracks and broadcasts progress for all transfers.
type Manager struct {
	hub       *websocket.Hub
	transfers map[string]*Transfer
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewManager creates a new progress manager.
func NewManager(hub *websocket.Hub, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:       hub,
		transfers: make(map[string]*Transfer),
		logger:    logger.With().Str("component", "progress").Logger(),
	}
}

// Start begins tracking a transfer.
func (m *Manager) Start(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transfers[id] = &Transfer{
		ID:        id,
		Name:      name,
		Status:    StatusRequesting,
		Percent:   Indeterminate,
		StartedAt: time.Now(),
	}
	m.broadcast("transfer:started", m.transfers[id])
}

// Update reports streaming progress for a transfer.
func (m *Manager) Update(id string, received, total int64, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[id]
	if !ok {
		return
	}
	t.Status = StatusStreaming
	t.ReceivedBytes = received
	t.TotalBytes = total
	t.Percent = percent
	m.broadcast("transfer:update", t)
}

// Finish marks a transfer's terminal state and drops it from tracking
// shortly after, leaving the display timeout to the frontend.
func (m *Manager) Finish(id string, status Status, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[id]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	t.Error = errMsg
	if status == StatusCompleted {
		t.Percent = 100
	}
	m.broadcast("transfer:finished", t)

	go func() {
		time.Sleep(5 * time.Second)
		m.mu.Lock()
		delete(m.transfers, id)
		m.mu.Unlock()
	}()

	m.logger.Debug().Str("id", id).Str("status", string(status)).Msg("transfer finished")
}

// Active returns all transfers still being tracked.
func (m *Manager) Active() []*Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		result = append(result, t)
	}
	return result
}

func (m *Manager) broadcast(eventType string, t *Transfer) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(eventType, t)
}

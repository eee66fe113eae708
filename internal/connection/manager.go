package connection

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// ControllerInfo holds the state of a connected tent controller
type ControllerInfo struct {
	ConnectionID  string
	TentID        int64
	Controller    string
	ConnectedAt   time.Time
	LastHeardFrom time.Time
	Readings      int
	Conn          net.Conn
	mu            sync.RWMutex
}

// Touch records activity on the connection
func (c *ControllerInfo) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeardFrom = time.Now()
}

// RecordReading records an accepted reading
func (c *ControllerInfo) RecordReading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeardFrom = time.Now()
	c.Readings++
}

// GetLastHeardFrom returns the last activity timestamp
func (c *ControllerInfo) GetLastHeardFrom() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LastHeardFrom
}

// ReadingCount returns the number of readings accepted on the connection
func (c *ControllerInfo) ReadingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Readings
}

// Manager tracks the connected tent controllers
type Manager struct {
	controllers map[string]*ControllerInfo // key: connection_id
	byTent      map[int64][]string         // key: tent_id, value: []connection_id
	mu          sync.RWMutex
	maxConns    int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		controllers: make(map[string]*ControllerInfo),
		byTent:      make(map[int64][]string),
		maxConns:    maxConnections,
	}
}

// Register adds an identified controller connection
func (m *Manager) Register(connectionID string, tentID int64, controller string, conn net.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.controllers) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.controllers[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	m.controllers[connectionID] = &ControllerInfo{
		ConnectionID:  connectionID,
		TentID:        tentID,
		Controller:    controller,
		ConnectedAt:   now,
		LastHeardFrom: now,
		Conn:          conn,
	}
	m.byTent[tentID] = append(m.byTent[tentID], connectionID)

	return nil
}

// Unregister removes a controller connection
func (m *Manager) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.controllers[connectionID]
	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	tentID := info.TentID
	if connIDs, ok := m.byTent[tentID]; ok {
		for i, id := range connIDs {
			if id == connectionID {
				m.byTent[tentID] = append(connIDs[:i], connIDs[i+1:]...)
				break
			}
		}
		if len(m.byTent[tentID]) == 0 {
			delete(m.byTent, tentID)
		}
	}

	delete(m.controllers, connectionID)

	return nil
}

// Get retrieves controller information by connection ID
func (m *Manager) Get(connectionID string) (*ControllerInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.controllers[connectionID]
	return info, exists
}

// GetByTent retrieves all connection IDs reporting for a tent
func (m *Manager) GetByTent(tentID int64) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := m.byTent[tentID]
	result := make([]string, len(connIDs))
	copy(result, connIDs)
	return result
}

// UpdateActivity updates the last heard from timestamp for a connection
func (m *Manager) UpdateActivity(connectionID string) error {
	m.mu.RLock()
	info, exists := m.controllers[connectionID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	info.Touch()
	return nil
}

// GetInactiveConnections returns connection IDs that haven't been heard from in the given duration
func (m *Manager) GetInactiveConnections(timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var inactive []string

	for connID, info := range m.controllers {
		if now.Sub(info.GetLastHeardFrom()) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

// Count returns the total number of active connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.controllers)
}

// GetAllConnections returns all connection IDs
func (m *Manager) GetAllConnections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := make([]string, 0, len(m.controllers))
	for connID := range m.controllers {
		connIDs = append(connIDs, connID)
	}
	return connIDs
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		TotalConnections: len(m.controllers),
		ReportingTents:   len(m.byTent),
		MaxConnections:   m.maxConns,
	}
}

// TentStatus summarises the controllers reporting for one tent
type TentStatus struct {
	TentID        int64
	Controllers   []string
	Readings      int
	LastHeardFrom time.Time
}

// Tents returns one status per reporting tent, ordered by tent ID
func (m *Manager) Tents() []TentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TentStatus, 0, len(m.byTent))
	for tentID, connIDs := range m.byTent {
		st := TentStatus{TentID: tentID}
		for _, id := range connIDs {
			info := m.controllers[id]
			st.Controllers = append(st.Controllers, info.Controller)
			st.Readings += info.ReadingCount()
			if last := info.GetLastHeardFrom(); last.After(st.LastHeardFrom) {
				st.LastHeardFrom = last
			}
		}
		sort.Strings(st.Controllers)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TentID < out[j].TentID })
	return out
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int
	ReportingTents   int
	MaxConnections   int
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}

package connection

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) net.Conn {
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server
}

func TestManager_Register(t *testing.T) {
	m := NewManager(10)

	require.NoError(t, m.Register("conn1", 1, "esp32-a", pipeConn(t)))
	assert.Equal(t, 1, m.Count())

	info, exists := m.Get("conn1")
	require.True(t, exists)
	assert.Equal(t, int64(1), info.TentID)
	assert.Equal(t, "esp32-a", info.Controller)
}

func TestManager_RegisterDuplicateID(t *testing.T) {
	m := NewManager(10)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "esp32-a", conn))
	assert.Error(t, m.Register("conn1", 2, "esp32-b", conn))
}

func TestManager_RegisterMaxConnections(t *testing.T) {
	m := NewManager(2)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "a", conn))
	require.NoError(t, m.Register("conn2", 2, "b", conn))

	err := m.Register("conn3", 3, "c", conn)
	assert.Equal(t, ErrMaxConnectionsReached, err)
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager(10)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "a", conn))
	require.NoError(t, m.Register("conn2", 1, "b", conn))

	require.NoError(t, m.Unregister("conn1"))
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, []string{"conn2"}, m.GetByTent(1))

	require.NoError(t, m.Unregister("conn2"))
	assert.Empty(t, m.GetByTent(1))
	assert.Equal(t, 0, m.Stats().ReportingTents)

	assert.Error(t, m.Unregister("conn2"))
}

func TestManager_GetByTent(t *testing.T) {
	m := NewManager(10)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "a", conn))
	require.NoError(t, m.Register("conn2", 1, "b", conn))
	require.NoError(t, m.Register("conn3", 2, "c", conn))

	assert.Len(t, m.GetByTent(1), 2)
	assert.Len(t, m.GetByTent(2), 1)
	assert.Empty(t, m.GetByTent(3))
}

func TestManager_UpdateActivity(t *testing.T) {
	m := NewManager(10)
	require.NoError(t, m.Register("conn1", 1, "a", pipeConn(t)))

	info, _ := m.Get("conn1")
	firstHeard := info.GetLastHeardFrom()

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, m.UpdateActivity("conn1"))
	assert.True(t, info.GetLastHeardFrom().After(firstHeard))

	assert.Error(t, m.UpdateActivity("missing"))
}

func TestControllerInfo_RecordReading(t *testing.T) {
	m := NewManager(10)
	require.NoError(t, m.Register("conn1", 1, "a", pipeConn(t)))

	info, _ := m.Get("conn1")
	info.RecordReading()
	info.RecordReading()

	assert.Equal(t, 2, info.ReadingCount())
}

func TestManager_GetInactiveConnections(t *testing.T) {
	m := NewManager(10)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "a", conn))
	require.NoError(t, m.Register("conn2", 2, "b", conn))

	info, _ := m.Get("conn1")
	info.mu.Lock()
	info.LastHeardFrom = time.Now().Add(-5 * time.Minute)
	info.mu.Unlock()

	assert.Equal(t, []string{"conn1"}, m.GetInactiveConnections(2*time.Minute))
}

func TestManager_Stats(t *testing.T) {
	m := NewManager(100)
	conn := pipeConn(t)

	require.NoError(t, m.Register("conn1", 1, "a", conn))
	require.NoError(t, m.Register("conn2", 1, "b", conn))
	require.NoError(t, m.Register("conn3", 2, "c", conn))

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 2, stats.ReportingTents)
	assert.Equal(t, 100, stats.MaxConnections)
}

func TestManager_Tents(t *testing.T) {
	m := NewManager(10)
	conn := pipeConn(t)

	require.NoError(t, m.Register("c1", 7, "esp32-b", conn))
	require.NoError(t, m.Register("c2", 7, "esp32-a", conn))
	require.NoError(t, m.Register("c3", 2, "esp32-c", conn))

	info, ok := m.Get("c1")
	require.True(t, ok)
	info.RecordReading()
	info.RecordReading()

	tents := m.Tents()
	require.Len(t, tents, 2)
	assert.Equal(t, int64(2), tents[0].TentID)
	assert.Equal(t, int64(7), tents[1].TentID)
	assert.Equal(t, []string{"esp32-a", "esp32-b"}, tents[1].Controllers)
	assert.Equal(t, 2, tents[1].Readings)
	assert.False(t, tents[1].LastHeardFrom.IsZero())
}

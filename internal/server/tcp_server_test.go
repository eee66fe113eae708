package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/connection"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/timer"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

type published struct {
	key   string
	value []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{key: key, value: value})
	return nil
}

func (p *recordingPublisher) Messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func startServer(t *testing.T, inactivity time.Duration) (*TCPServer, *recordingPublisher, *connection.Manager) {
	cfg := &config.TCPServerConfig{
		Port:              0,
		MaxConnections:    10,
		IdentifyTimeout:   time.Second,
		InactivityTimeout: inactivity,
		ReadTimeout:       time.Second,
	}

	tm := timer.NewTimerManager()
	tm.Start()
	t.Cleanup(tm.Stop)

	pub := &recordingPublisher{}
	manager := connection.NewManager(cfg.MaxConnections)
	srv := NewTCPServer(cfg, manager, tm, pub, zap.NewNop())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return srv, pub, manager
}

type controllerClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, srv *TCPServer) *controllerClient {
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &controllerClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *controllerClient) send(t *testing.T, line string) {
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *controllerClient) ack(t *testing.T) protocol.AckMessage {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)

	var ack protocol.AckMessage
	require.NoError(t, json.Unmarshal([]byte(line), &ack))
	return ack
}

func TestTCPServer_IdentifyAndReading(t *testing.T) {
	srv, pub, manager := startServer(t, time.Minute)
	c := dial(t, srv)

	c.send(t, `{"type":"identify","tent_id":3,"controller":"esp32-flora"}`)
	assert.Equal(t, protocol.AckStatusIdentified, c.ack(t).Status)

	c.send(t, `{"type":"reading","data":{"log_date":"2026-03-10","turn":"AM","temp":27.5,"rh":55}}`)
	assert.Equal(t, protocol.AckStatusAccepted, c.ack(t).Status)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", msgs[0].key)

	logMsg, err := protocol.DecodeDailyLogMessage(msgs[0].value)
	require.NoError(t, err)
	assert.Equal(t, int64(3), logMsg.TentID)
	assert.Equal(t, "esp32-flora", logMsg.Controller)
	require.NotNil(t, logMsg.Data.Temp)
	assert.Equal(t, 27.5, *logMsg.Data.Temp)
	assert.Nil(t, logMsg.Data.PPFD)

	assert.Len(t, manager.GetByTent(3), 1)
}

func TestTCPServer_Keepalive(t *testing.T) {
	srv, pub, _ := startServer(t, time.Minute)
	c := dial(t, srv)

	c.send(t, `{"type":"identify","tent_id":1,"controller":"a"}`)
	c.ack(t)

	c.send(t, `{"type":"keepalive"}`)
	assert.Equal(t, protocol.AckStatusAlive, c.ack(t).Status)
	assert.Empty(t, pub.Messages())
}

func TestTCPServer_RejectsInvalidReading(t *testing.T) {
	srv, pub, _ := startServer(t, time.Minute)
	c := dial(t, srv)

	c.send(t, `{"type":"identify","tent_id":1,"controller":"a"}`)
	c.ack(t)

	c.send(t, `{"type":"reading","data":{"log_date":"10/03/2026","turn":"AM"}}`)
	ack := c.ack(t)
	assert.Equal(t, protocol.AckStatusError, ack.Status)
	assert.NotEmpty(t, ack.Message)
	assert.Empty(t, pub.Messages())
}

func TestTCPServer_RequiresIdentifyFirst(t *testing.T) {
	srv, _, manager := startServer(t, time.Minute)
	c := dial(t, srv)

	c.send(t, `{"type":"keepalive"}`)
	assert.Equal(t, protocol.AckStatusError, c.ack(t).Status)
	assert.Equal(t, 0, manager.Count())
}

func TestTCPServer_InactivityClosesConnection(t *testing.T) {
	srv, _, manager := startServer(t, 100*time.Millisecond)
	c := dial(t, srv)

	c.send(t, `{"type":"identify","tent_id":1,"controller":"a"}`)
	c.ack(t)

	assert.Eventually(t, func() bool { return manager.Count() == 0 }, 2*time.Second, 20*time.Millisecond)
}

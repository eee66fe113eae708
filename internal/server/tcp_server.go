package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/connection"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/queue"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/timer"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

// Publisher receives the daily-log messages of identified controllers
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// TCPServer accepts tent controllers and forwards their readings to the
// daily-log topic
type TCPServer struct {
	config       *config.TCPServerConfig
	connManager  *connection.Manager
	timerManager *timer.TimerManager
	producer     Publisher
	logger       *zap.Logger
	listener     net.Listener
	wg           sync.WaitGroup
	stopCh       chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewTCPServer creates a new TCP server
func NewTCPServer(cfg *config.TCPServerConfig, connManager *connection.Manager, timerManager *timer.TimerManager, producer Publisher, logger *zap.Logger) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		config:       cfg,
		connManager:  connManager,
		timerManager: timerManager,
		producer:     producer,
		logger:       logger,
		stopCh:       make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.listener = listener
	s.logger.Info("TCP server listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the bound listener address
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return
func (s *TCPServer) Stop() {
	close(s.stopCh)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, id := range s.connManager.GetAllConnections() {
		if info, ok := s.connManager.Get(id); ok {
			info.Conn.Close()
		}
	}

	s.wg.Wait()
	s.logger.Info("TCP server stopped")
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Warn("failed to accept connection", zap.Error(err))
				continue
			}
		}

		if s.connManager.Count() >= s.config.MaxConnections {
			s.logger.Warn("maximum connections reached, rejecting connection",
				zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

type session struct {
	connectionID string
	tentID       int64
	controller   string
	conn         net.Conn
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()
	logger := s.logger.With(zap.String("connection_id", connectionID))
	logger.Info("new connection", zap.String("remote", conn.RemoteAddr().String()))

	conn.SetReadDeadline(time.Now().Add(s.config.IdentifyTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		logger.Warn("failed to read identify message", zap.Error(err))
		return
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		logger.Warn("failed to parse identify message", zap.Error(err))
		s.sendError(conn, "invalid message format")
		return
	}

	identifyMsg, ok := msg.(*protocol.IdentifyMessage)
	if !ok {
		logger.Warn("expected identify message", zap.String("got", fmt.Sprintf("%T", msg)))
		s.sendError(conn, "expected identify message")
		return
	}

	if err := s.connManager.Register(connectionID, identifyMsg.TentID, identifyMsg.Controller, conn); err != nil {
		logger.Warn("failed to register controller", zap.Error(err))
		s.sendError(conn, "failed to register")
		return
	}
	defer s.connManager.Unregister(connectionID)

	sess := session{
		connectionID: connectionID,
		tentID:       identifyMsg.TentID,
		controller:   identifyMsg.Controller,
		conn:         conn,
	}
	logger = logger.With(zap.Int64("tent_id", sess.tentID), zap.String("controller", sess.controller))
	logger.Info("controller identified")

	if err := s.sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusIdentified)); err != nil {
		logger.Warn("failed to send ack", zap.Error(err))
		return
	}

	inactivity := s.scheduleInactivityTimer(connectionID, logger)
	defer func() { inactivity.Cancel() }()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logger.Info("connection closed", zap.Error(err))
			return
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			logger.Warn("failed to parse message", zap.Error(err))
			s.sendError(conn, err.Error())
			continue
		}

		if err := s.handleMessage(sess, msg); err != nil {
			logger.Error("failed to handle message", zap.Error(err))
			s.sendError(conn, "message rejected")
		}

		s.connManager.UpdateActivity(connectionID)
		inactivity = s.scheduleInactivityTimer(connectionID, logger)
	}
}

func (s *TCPServer) handleMessage(sess session, msg interface{}) error {
	switch m := msg.(type) {
	case *protocol.ReadingMessage:
		return s.handleReading(sess, m)

	case *protocol.KeepaliveMessage:
		return s.sendMessage(sess.conn, protocol.NewAckMessage(protocol.AckStatusAlive))

	case *protocol.IdentifyMessage:
		return fmt.Errorf("connection already identified")

	default:
		return fmt.Errorf("unknown message type: %T", msg)
	}
}

func (s *TCPServer) handleReading(sess session, msg *protocol.ReadingMessage) error {
	logMsg := &protocol.DailyLogMessage{
		ConnectionID: sess.connectionID,
		TentID:       sess.tentID,
		Controller:   sess.controller,
		ReceivedAt:   time.Now(),
		Data:         msg.Data,
	}

	data, err := protocol.EncodeDailyLogMessage(logMsg)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	// Keyed by tent so a tent's readings stay ordered on one partition.
	if err := s.producer.Publish(s.ctx, queue.TentKey(sess.tentID), data); err != nil {
		return fmt.Errorf("failed to publish reading: %w", err)
	}

	if info, ok := s.connManager.Get(sess.connectionID); ok {
		info.RecordReading()
	}

	s.logger.Debug("reading accepted",
		zap.Int64("tent_id", sess.tentID),
		zap.String("log_date", msg.Data.LogDate),
		zap.String("turn", msg.Data.Turn))
	return s.sendMessage(sess.conn, protocol.NewAckMessage(protocol.AckStatusAccepted))
}

func (s *TCPServer) sendMessage(conn net.Conn, msg interface{}) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}

	_, err = conn.Write(append(data, '\n'))
	return err
}

func (s *TCPServer) sendError(conn net.Conn, errMsg string) {
	ack := protocol.NewAckMessage(protocol.AckStatusError)
	ack.Message = errMsg
	s.sendMessage(conn, ack)
}

func (s *TCPServer) scheduleInactivityTimer(connectionID string, logger *zap.Logger) timer.Handle {
	timerID := fmt.Sprintf("inactivity-%s", connectionID)
	expiryAt := time.Now().Add(s.config.InactivityTimeout)

	callback := func() {
		logger.Info("inactivity timeout")

		info, exists := s.connManager.Get(connectionID)
		if !exists {
			return
		}

		// The handler unregisters on its way out.
		info.Conn.Close()
	}

	h, err := s.timerManager.Schedule(timerID, expiryAt, callback)
	if err != nil {
		logger.Warn("failed to schedule inactivity timer", zap.Error(err))
	}
	return h
}

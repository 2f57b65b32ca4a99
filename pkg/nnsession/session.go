// Package nnsession implements a client session for an OpenNN server.
//
// A Session owns one persistent connection and multiplexes any number of
// concurrent requests over it. Every request is tagged with a fresh
// correlation token; responses are matched back to their caller by that token
// and may arrive in any order.
package nnsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/psichix/opennn-go/pkg/nnwire"
)

// State is the lifecycle stage of a Session's connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Session struct {
	id      xid.ID
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	conn    Conn
	pending map[string]*Call
	cause   error

	opened chan struct{}
	done   chan struct{}

	writeSlot chan struct{}
}

// New starts connecting to cfg.Address and returns without waiting for the
// connection. Use Ready to wait for it.
func New(cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	addr, err := NormalizeAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	cfg.Address = addr

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      xid.New(),
		cfg:     cfg,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateConnecting,
		pending: make(map[string]*Call),
		opened:  make(chan struct{}),
		done:    make(chan struct{}),

		writeSlot: make(chan struct{}, 1),
	}
	s.log = cfg.Log.With().
		Str("session_id", s.id.String()).
		Str("address", addr).
		Logger()
	go s.dial()
	return s, nil
}

// ID returns the session's log correlation id.
func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session has an open connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.state == StateOpen
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session closed. It is nil while the session is usable
// and after an explicit Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Pending returns the number of requests awaiting a response.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Ready blocks until the connection is open. It fails with ErrNoConnection if
// the session is already closed, and with ErrOpenFailed if the connection
// closed before it ever opened.
func (s *Session) Ready(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case StateOpen:
		return nil
	case StateClosed:
		if s.wasOpened() {
			return ErrNoConnection
		}
		return fmt.Errorf("%w: %w", ErrNoConnection, s.openFailure())
	}

	select {
	case <-s.opened:
		return nil
	case <-s.done:
		if s.wasOpened() {
			return nil
		}
		return s.openFailure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) wasOpened() bool {
	select {
	case <-s.opened:
		return true
	default:
		return false
	}
}

func (s *Session) openFailure() error {
	cause := s.Err()
	switch {
	case cause == nil:
		return ErrOpenFailed
	case errors.Is(cause, ErrOpenFailed):
		return cause
	default:
		return fmt.Errorf("%w: %w", ErrOpenFailed, cause)
	}
}

// Close closes the connection and fails every pending request with
// ErrConnectionClosed. Calling it again is a no-op.
func (s *Session) Close() error {
	return s.terminate(nil)
}

func (s *Session) dial() {
	ctx := s.ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := s.cfg.Dialer(ctx, s.cfg.Address, s.cfg.MaxMessageSize)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("Failed to open connection")
		}
		_ = s.terminate(fmt.Errorf("%w: %w", ErrOpenFailed, err))
		return
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.state = StateOpen
	s.conn = conn
	close(s.opened)
	s.mu.Unlock()

	s.log.Debug().Msg("Connection open")
	go s.readLoop(conn)
}

func (s *Session) readLoop(conn Conn) {
	for {
		data, err := conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("Connection lost")
			}
			_ = s.terminate(err)
			return
		}
		s.handleMessage(data)
	}
}

func (s *Session) handleMessage(data []byte) {
	resp, err := nnwire.ParseResponse(data)
	if err != nil {
		s.log.Debug().Err(err).Msg("Dropping unparsable message")
		return
	}
	if resp.Token == "" {
		s.log.Debug().Str("type", resp.Type).Msg("Dropping message without token")
		return
	}
	call := s.take(resp.Token)
	if call == nil {
		s.log.Debug().
			Str("type", resp.Type).
			Str("token", resp.Token).
			Msg("Dropping message for unknown token")
		return
	}
	if resp.Failure != nil {
		s.settle(call, nil, resp.Failure)
		return
	}
	s.settle(call, resp, nil)
}

// terminate moves the session to closed exactly once and fails whatever is
// still pending.
func (s *Session) terminate(cause error) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.cause = cause
	conn := s.conn
	s.conn = nil
	pending := s.pending
	s.pending = make(map[string]*Call)
	for _, call := range pending {
		call.stopTimer()
	}
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}

	failure := ErrConnectionClosed
	if cause != nil {
		failure = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}
	for _, call := range pending {
		s.settle(call, nil, failure)
	}
	if cause != nil {
		s.log.Info().AnErr("cause", cause).Int("failed_requests", len(pending)).Msg("Session closed")
	} else {
		s.log.Debug().Int("failed_requests", len(pending)).Msg("Session closed")
	}
	return closeErr
}

// Start registers and transmits req and returns its in-flight Call. Invalid
// descriptors and a missing connection fail before anything is sent. ctx bounds
// only the transmission; if it ends while another frame is being written the
// request is dropped and nothing is sent. A websocket connection whose write is
// interrupted mid-frame is closed by the transport.
func (s *Session) Start(ctx context.Context, req nnwire.Request) (*Call, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateOpen || s.conn == nil {
		s.mu.Unlock()
		return nil, ErrNoConnection
	}
	token := s.newToken()
	call := &Call{
		Token:   token,
		Type:    req.Type(),
		s:       s,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	if s.cfg.RequestTimeout > 0 {
		call.timer = time.AfterFunc(s.cfg.RequestTimeout, func() {
			s.fail(token, ErrRequestTimeout)
		})
	}
	s.pending[token] = call
	conn := s.conn
	s.mu.Unlock()
	s.metrics.requestStarted(call.Type)

	data, err := req.Encode(token)
	if err == nil {
		err = s.write(ctx, conn, data)
	}
	if err != nil {
		err = fmt.Errorf("nnsession: send %s request: %w", call.Type, err)
		s.fail(token, err)
		return nil, err
	}
	return call, nil
}

// Send transmits req and waits for its response. If ctx ends first the
// request is abandoned and a late response is ignored.
func (s *Session) Send(ctx context.Context, req nnwire.Request) (*nnwire.Response, error) {
	call, err := s.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := call.Wait(ctx)
	if err != nil {
		s.loggerFor(ctx).Debug().Err(err).
			Str("type", call.Type).
			Str("token", call.Token).
			Msg("Request failed")
	}
	return resp, err
}

// write sends one frame. Frames go out one at a time; a caller waiting for its
// turn gives up when ctx ends or the session closes.
func (s *Session) write(ctx context.Context, conn Conn, data []byte) error {
	select {
	case s.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrConnectionClosed
	}
	defer func() { <-s.writeSlot }()
	return conn.Write(ctx, data)
}

// loggerFor prefers a logger attached to ctx so callers can add their own
// fields to request logs.
func (s *Session) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLog := zerolog.Ctx(ctx); ctxLog != nil && ctxLog.GetLevel() != zerolog.Disabled {
		withSession := ctxLog.With().Str("session_id", s.id.String()).Logger()
		return &withSession
	}
	return &s.log
}

func (s *Session) newToken() string {
	for {
		token := uuid.NewString()
		if _, exists := s.pending[token]; !exists {
			return token
		}
	}
}

// take removes and returns the pending call for token. Only the goroutine that
// takes a call may settle it.
func (s *Session) take(token string) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.pending[token]
	if !ok {
		return nil
	}
	delete(s.pending, token)
	call.stopTimer()
	return call
}

func (s *Session) fail(token string, err error) {
	if call := s.take(token); call != nil {
		s.settle(call, nil, err)
	}
}

func (s *Session) settle(call *Call, resp *nnwire.Response, err error) {
	s.metrics.requestFinished(call.Type, outcome(err), time.Since(call.started))
	call.resp, call.err = resp, err
	close(call.done)
}

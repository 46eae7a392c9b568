package hooks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"contract-hooks/internal/orchestrator"
	"contract-hooks/internal/types"
)

// Events sent by the contract-test runner
const (
	EventBeforeAll            = "beforeAll"
	EventBeforeEach           = "beforeEach"
	EventBeforeEachValidation = "beforeEachValidation"
	EventBefore               = "before"
	EventAfter                = "after"
	EventAfterEach            = "afterEach"
	EventAfterAll             = "afterAll"
)

const delimiter = '\n'

// ErrMalformedData is returned when an event carries data that is not a transaction
var ErrMalformedData = errors.New("hooks: malformed event data")

// Message is one newline-delimited frame of the hooks worker protocol
type Message struct {
	UUID  string          `json:"uuid"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Runner prepares and completes transactions
type Runner interface {
	Prepare(tx *types.Transaction) orchestrator.Preparation
	Complete(tx *types.Transaction) orchestrator.Completion
}

// Server is the hooks worker the runner connects to
type Server struct {
	addr   string
	runner Runner
	log    *zap.Logger
}

// NewServer creates a hooks worker listening on addr
func NewServer(addr string, runner Runner, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{addr: addr, runner: runner, log: log}
}

// ListenAndServe listens on the configured address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener and handles them one at a time, so session
// state is only ever touched by a single message. It returns nil once ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.log.Info("hooks worker listening", zap.String("addr", listener.Addr().String()))
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("hooks worker stopped")
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	remote := zap.String("remote", conn.RemoteAddr().String())
	s.log.Debug("runner connected", remote)

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for {
		line, err := reader.ReadBytes(delimiter)
		if frame := bytes.TrimSpace(line); len(frame) > 0 {
			if werr := s.handleFrame(frame, writer); werr != nil {
				s.log.Warn("failed to write reply", remote, zap.Error(werr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.log.Warn("connection read failed", remote, zap.Error(err))
			}
			s.log.Debug("runner disconnected", remote)
			return
		}
	}
}

func (s *Server) handleFrame(frame []byte, w *bufio.Writer) error {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.log.Warn("dropping unreadable message", zap.Error(err))
		return nil
	}

	reply, err := s.Dispatch(msg)
	if err != nil {
		s.log.Warn("echoing message unchanged", zap.String("event", msg.Event), zap.String("uuid", msg.UUID), zap.Error(err))
		reply = msg
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, delimiter)); err != nil {
		return err
	}
	return w.Flush()
}

// Dispatch handles one event and returns the reply. The reply always carries the
// request uuid; events without a hook are echoed.
func (s *Server) Dispatch(msg Message) (Message, error) {
	switch msg.Event {
	case EventBeforeEach:
		return s.withTransaction(msg, func(tx *types.Transaction) {
			s.runner.Prepare(tx)
		})
	case EventAfterEach:
		return s.withTransaction(msg, func(tx *types.Transaction) {
			s.runner.Complete(tx)
		})
	case EventBeforeAll, EventAfterAll:
		var transactions []json.RawMessage
		if err := json.Unmarshal(msg.Data, &transactions); err != nil {
			return msg, fmt.Errorf("%w: %s: %v", ErrMalformedData, msg.Event, err)
		}
		s.log.Info("test run event", zap.String("event", msg.Event), zap.Int("transactions", len(transactions)))
		return msg, nil
	default:
		s.log.Debug("no hook for event", zap.String("event", msg.Event))
		return msg, nil
	}
}

func (s *Server) withTransaction(msg Message, hook func(*types.Transaction)) (Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &raw); err != nil || raw == nil {
		return msg, fmt.Errorf("%w: %s", ErrMalformedData, msg.Event)
	}
	var tx types.Transaction
	if err := json.Unmarshal(msg.Data, &tx); err != nil {
		return msg, fmt.Errorf("%w: %s: %v", ErrMalformedData, msg.Event, err)
	}

	hook(&tx)

	updated, err := json.Marshal(tx)
	if err != nil {
		return msg, err
	}
	merged, err := overlay(msg.Data, updated)
	if err != nil {
		return msg, err
	}
	return Message{UUID: msg.UUID, Event: msg.Event, Data: merged}, nil
}

// overlay writes the keys of updated onto original, descending into objects present
// on both sides. Keys only present in original are kept as they were.
func overlay(original, updated json.RawMessage) (json.RawMessage, error) {
	var base, top map[string]json.RawMessage
	if json.Unmarshal(original, &base) != nil || base == nil {
		return updated, nil
	}
	if json.Unmarshal(updated, &top) != nil || top == nil {
		return updated, nil
	}

	for key, value := range top {
		if existing, ok := base[key]; ok {
			merged, err := overlay(existing, value)
			if err != nil {
				return nil, err
			}
			base[key] = merged
			continue
		}
		base[key] = value
	}
	return json.Marshal(base)
}

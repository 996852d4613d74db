package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"group-chat/auth"
	"group-chat/contract"
	"group-chat/domain"
	"group-chat/domain/event"
	"group-chat/errors"
	"group-chat/services"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	BufferSize      int
	MaxMessageSize  int64
	AllowedOrigins  []string
	DeliveryTimeout time.Duration
	PingPeriod      time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
}

// DefaultConfig keeps the ping period below the pong wait, so a healthy client never times out.
func DefaultConfig() Config {
	return Config{
		BufferSize:      256,
		MaxMessageSize:  64 * 1024,
		DeliveryTimeout: time.Second,
		PingPeriod:      54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
	}
}

// Server upgrades authenticated HTTP requests into chat connections and dispatches their
// frames to the gateway.
type Server struct {
	log      *slog.Logger
	gateway  services.IGateway
	identity *auth.IdentityResolver
	upgrader websocket.Upgrader
	config   Config

	mu          sync.Mutex
	connections map[domain.ConnectionID]*Connection
	closing     bool
	handlers    sync.WaitGroup
}

func NewServer(log *slog.Logger, gateway services.IGateway, identity *auth.IdentityResolver, config Config) *Server {
	origins := newOriginPolicy(config.AllowedOrigins, log)
	return &Server{
		log:      log,
		gateway:  gateway,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		config:      config,
		connections: make(map[domain.ConnectionID]*Connection),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "ok")
	})
	return mux
}

// ServeHTTP resolves the caller identity before upgrading: an unauthenticated request is
// answered with a plain 401 and never becomes a connection. The handler goroutine then
// serves as the read pump of the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	if !s.enter() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.handlers.Done()

	userID, err := s.identity.Resolve(r)
	if err != nil {
		s.log.Debug("Upgrade refused", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConnection(ws, userID, s.log, s.config)
	go conn.writePump()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := s.gateway.Connect(ctx, conn); err != nil {
		s.log.Warn("Connect refused", "user_id", userID, "error", err)
		s.reply(ctx, conn, event.NewError("", "Connect", errors.Kind(err), publicError(err)))
		conn.Close()
		return
	}

	s.track(conn)
	defer func() {
		s.untrack(conn)
		s.gateway.Disconnect(conn)
	}()

	conn.readPump(func(frame []byte) {
		s.dispatch(ctx, conn, frame)
	})
}

// Shutdown closes every open connection with a normal closure frame, then waits for their
// handlers to finish. Upgraded connections are hijacked, http.Server.Shutdown does not wait for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for _, conn := range s.connections {
		conn.Close()
	}
	count := len(s.connections)
	s.mu.Unlock()
	s.log.Info("WebSocket connections closed", "count", count)

	finished := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connection handlers: %w", ctx.Err())
	}
}

// enter registers a handler, unless Shutdown already started.
func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) track(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ID()] = conn
}

func (s *Server) untrack(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn.ID())
}

func (s *Server) dispatch(ctx context.Context, conn contract.Connection, frame []byte) {
	var request domain.Request
	err := json.Unmarshal(frame, &request)
	if err != nil {
		err = fmt.Errorf("%w: %s", errors.ErrInvalidPayload, err)
	} else if err = auth.ValidateCommand(request); err == nil {
		err = s.call(ctx, conn, request)
	}
	if err == nil {
		return
	}

	s.log.Debug("Operation failed",
		"user_id", conn.UserID(),
		"method", request.Method,
		"kind", errors.Kind(err),
		"error", err)
	s.reply(ctx, conn, event.NewError(request.ID, string(request.Method), errors.Kind(err), publicError(err)))
}

func (s *Server) call(ctx context.Context, conn contract.Connection, request domain.Request) error {
	switch request.Method {
	case domain.SendMessageToGroupMethod:
		return handle(request.Params, func(cmd domain.SendMessageCommand) error {
			return s.gateway.SendMessageToGroup(ctx, conn, cmd)
		})
	case domain.CreateGroupMethod:
		return handle(request.Params, func(cmd domain.CreateGroupCommand) error {
			_, err := s.gateway.CreateGroup(ctx, conn, cmd)
			return err
		})
	case domain.JoinGroupMethod:
		return handle(request.Params, func(cmd domain.JoinGroupCommand) error {
			return s.gateway.JoinGroup(ctx, conn, cmd)
		})
	case domain.BroadcastToAllMethod:
		return handle(request.Params, func(cmd domain.BroadcastCommand) error {
			return s.gateway.BroadcastToAll(ctx, conn, cmd)
		})
	case domain.InviteToGroupMethod:
		return handle(request.Params, func(cmd domain.InviteCommand) error {
			return s.gateway.InviteToGroup(ctx, conn, cmd)
		})
	case domain.HistoryMethod:
		return handle(request.Params, func(cmd domain.HistoryCommand) error {
			return s.gateway.History(ctx, conn, cmd)
		})
	case domain.SearchMessagesMethod:
		return handle(request.Params, func(cmd domain.SearchCommand) error {
			return s.gateway.SearchMessages(ctx, conn, cmd)
		})
	default:
		return fmt.Errorf("%q: %w", request.Method, errors.ErrUnknownMethod)
	}
}

func handle[T any](params json.RawMessage, operation func(T) error) error {
	cmd, err := auth.DecodeCommand[T](params)
	if err != nil {
		return err
	}
	return operation(cmd)
}

func (s *Server) reply(ctx context.Context, conn contract.Connection, envelope event.Envelope) {
	ctx, cancel := context.WithTimeout(ctx, s.config.DeliveryTimeout)
	defer cancel()
	if err := conn.Send(ctx, envelope); err != nil {
		s.log.Debug("Reply not delivered", "user_id", conn.UserID(), "error", err)
	}
}

// publicError hides the details of internal failures from clients.
func publicError(err error) error {
	if errors.Kind(err) == errors.KindInternal {
		return fmt.Errorf("internal error")
	}
	return err
}

// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>skyframe</title></head>
<body>
<h1>skyframe</h1>
<p>{{.Clients}} client(s) connected.</p>
<ul>
<li><code>/ws</code> websocket: JSON view and reconnect messages, binary RGB frames.
Send <code>{"type":"client_connected"}</code> after connecting.</li>
<li><code>/metrics</code> prometheus metrics.</li>
</ul>
</body>
</html>
`))

type Server struct {
	server    *http.Server
	addr      string
	listener  net.Listener
	isRunning bool
	mu        sync.Mutex

	hub      *Hub
	inbound  func(messages.StateMessage) error
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New builds the HTTP surface. Commands received from websocket clients are
// passed to inbound.
func New(addr string, hub *Hub, inbound func(messages.StateMessage) error, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	return &Server{
		addr:     addr,
		hub:      hub,
		inbound:  inbound,
		gatherer: gatherer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, struct{ Clients int }{s.hub.Clients()}); err != nil {
			s.logger.Error("index template", zap.Error(err))
		}
	})
	return mux
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	s.isRunning = true
	s.logger.Info("server is running", zap.String("addr", listener.Addr().String()))
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.isRunning = false
	s.logger.Info("server stopped")
	return nil
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Addr returns the bound address once running, the configured one otherwise.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	id, queue := s.hub.Subscribe()
	logger := s.logger.With(zap.Int("client", id), zap.String("remote", r.RemoteAddr))
	logger.Info("websocket connection established")

	done := make(chan struct{})
	go func() {
		defer close(done)
		writeLoop(conn, queue, logger)
	}()

	defer func() {
		s.hub.Unsubscribe(id)
		<-done
		conn.Close()
		logger.Info("websocket connection closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		msg, err := messages.DecodeClientMessage(data)
		if err != nil {
			logger.Warn("dropping client message", zap.Error(err))
			continue
		}
		if err := s.inbound(msg); err != nil {
			logger.Debug("inbound closed", zap.Error(err))
			return
		}
	}
}

// writeLoop drains the client queue onto the socket. It is the only writer
// on conn.
func writeLoop(conn *websocket.Conn, queue <-chan Envelope, logger *zap.Logger) {
	for env := range queue {
		messageType := websocket.TextMessage
		if env.Binary {
			messageType = websocket.BinaryMessage
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(messageType, env.Payload); err != nil {
			logger.Warn("websocket write failed", zap.Error(err))
			// unblock the reader; the queue is closed once it unsubscribes
			conn.Close()
			for range queue {
			}
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// Package attention connects to a remote gaze detector that streams
// attention readings over a websocket.
package attention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwadden/commboard/internal/ports"
)

var (
	ErrNoReading = errors.New("no attention reading received yet")
	ErrStale     = errors.New("attention reading is stale")
	ErrClosed    = errors.New("attention stream closed")
)

// Config controls the detector connection.
type Config struct {
	URL        string
	Token      string
	StaleAfter time.Duration
}

// Provider dials the remote detector.
type Provider struct {
	cfg Config
	now func() time.Time
}

func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = "ws://127.0.0.1:8765/attention"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Second
	}
	return &Provider{cfg: cfg, now: time.Now}
}

// Connect opens the stream. The returned session is a ports.Sensor and stays
// valid until ctx ends or Close is called.
func (p *Provider) Connect(ctx context.Context) (*Session, error) {
	wsURL, err := buildStreamURL(p.cfg.URL)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if token := strings.TrimSpace(p.cfg.Token); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to attention detector: %w", err)
	}

	session := &Session{
		conn:       conn,
		staleAfter: p.cfg.StaleAfter,
		now:        p.now,
		done:       make(chan struct{}),
	}
	go session.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()
	return session, nil
}

// Session holds the latest reading from the detector.
type Session struct {
	conn       *websocket.Conn
	staleAfter time.Duration
	now        func() time.Time
	done       chan struct{}

	mu        sync.Mutex
	attending bool
	at        time.Time
	err       error

	closeOnce sync.Once
}

var _ ports.Sensor = (*Session)(nil)

// Sample returns the most recent reading. It never blocks.
func (s *Session) Sample() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.at.IsZero() {
		return false, ErrNoReading
	}
	if s.now().Sub(s.at) > s.staleAfter {
		return false, ErrStale
	}
	return s.attending, nil
}

// Wait blocks until the stream ends and returns its error.
func (s *Session) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(s.err, ErrClosed) {
		return nil
	}
	return s.err
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setErr(ErrClosed)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read attention reading: %w", err))
			return
		}

		var msg detectorMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch strings.ToLower(msg.Type) {
		case "attention", "":
			if msg.Attending == nil {
				continue
			}
			s.mu.Lock()
			s.attending = *msg.Attending
			s.at = s.now()
			s.mu.Unlock()
		case "error":
			message := strings.TrimSpace(msg.Message)
			if message == "" {
				message = "attention detector returned an unknown error"
			}
			s.setErr(errors.New(message))
			_ = s.conn.Close()
			return
		}
	}
}

// setErr keeps the first error. Normal close frames count as ErrClosed.
func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		err = ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

type detectorMessage struct {
	Type      string `json:"type"`
	Attending *bool  `json:"attending"`
	Message   string `json:"message"`
}

func buildStreamURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid attention detector URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid attention detector URL %q: scheme must be ws or wss", raw)
	}
	return u.String(), nil
}

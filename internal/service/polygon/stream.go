package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a QuoteStream backed by the Polygon stocks WebSocket.
// It keeps the underlying price cache warm for the configured symbols.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a new Polygon QuoteStream.
func NewStream(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) drepo.QuoteStream {
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection and authenticates.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("polygon connect: %w", err)
	}
	s.conn = conn

	auth := map[string]string{"action": "auth", "params": s.apiKey}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("polygon auth: %w", err)
	}

	s.connected = true
	log.Printf("polygon stream: connected")
	return nil
}

// Subscribe subscribes to trade events for the configured symbols.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("polygon stream not connected")
	}
	if len(s.symbols) == 0 {
		return nil
	}
	topics := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		topics = append(topics, "T."+sym)
	}
	msg := map[string]string{"action": "subscribe", "params": strings.Join(topics, ",")}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("polygon stream: subscribed %s", strings.Join(s.symbols, ","))
	return nil
}

type wsEvent struct {
	Ev     string  `json:"ev"`
	Symbol string  `json:"sym"`
	Price  float64 `json:"p"`
	TimeMs int64   `json:"t"`
}

// Read streams quote events and errors.
func (s *Stream) Read(ctx context.Context) (<-chan *models.StreamQuote, <-chan error) {
	quotes := make(chan *models.StreamQuote, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(quotes)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("polygon stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("polygon stream read: %w", err)
					return
				}
				var events []wsEvent
				if err := json.Unmarshal(b, &events); err != nil {
					// ignore status and non-event frames
					continue
				}
				for _, ev := range events {
					if ev.Ev != "T" || ev.Price <= 0 {
						continue
					}
					q := &models.StreamQuote{
						Symbol:    ev.Symbol,
						Price:     ev.Price,
						Timestamp: ev.TimeMs / 1000,
					}
					select {
					case quotes <- q:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }

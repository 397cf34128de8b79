package replay

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/models"
)

const (
	StreamWriteTimeout = 10 * time.Second

	MessageInit   = "init"
	MessageCandle = "candle"
	MessageState  = "state"
	MessageDone   = "done"
	MessageError  = "error"
)

// StreamMessage is sent from server to client.
type StreamMessage struct {
	Type    string       `json:"type"`
	Candles []models.Bar `json:"candles,omitempty"`
	Candle  *models.Bar  `json:"candle,omitempty"`
	Index   int          `json:"index,omitempty"`
	Total   int          `json:"total"`
	State   string       `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`

	Substituted bool `json:"substituted,omitempty"`
}

// Control is sent from client to server: {"action": "pause"|"resume"|"stop"}.
type Control struct {
	Action string `json:"action"`
}

// StreamConfig controls reveal pacing.
type StreamConfig struct {
	// Initial bars are sent at once in the init message.
	Initial int
	// Interval is the delay between bars at speed 1.
	Interval time.Duration
	// Speeds is the allow-list of speed multipliers.
	Speeds []int
}

// Streamer reveals a slice bar by bar over a websocket.
type Streamer struct {
	cfg    StreamConfig
	logger logrus.FieldLogger
}

func NewStreamer(cfg StreamConfig, logger logrus.FieldLogger) *Streamer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Streamer{cfg: cfg, logger: logger}
}

// ValidSpeed reports whether speed is allowed.
func (s *Streamer) ValidSpeed(speed int) bool {
	return slices.Contains(s.cfg.Speeds, speed)
}

// Stream sends the initial bars, then one bar per Interval/speed until the slice
// is exhausted, the client sends stop, the client goes away or ctx is done.
func (s *Streamer) Stream(ctx context.Context, conn *websocket.Conn, slice Slice, speed int) error {
	if !s.ValidSpeed(speed) {
		return fmt.Errorf("invalid replay speed %d", speed)
	}
	log := s.logger.WithFields(logrus.Fields{
		"date":      slice.Date,
		"timeframe": slice.Timeframe,
		"speed":     speed,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controls := make(chan Control)
	go func() {
		defer cancel()
		for {
			var c Control
			if err := conn.ReadJSON(&c); err != nil {
				return
			}
			select {
			case controls <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	initial := min(max(s.cfg.Initial, 0), len(slice.Bars))
	if err := s.write(conn, StreamMessage{
		Type:        MessageInit,
		Candles:     slice.Bars[:initial],
		Total:       len(slice.Bars),
		Substituted: slice.Substituted,
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.Interval / time.Duration(speed))
	defer ticker.Stop()

	next, paused := initial, false
	for next < len(slice.Bars) {
		select {
		case <-ctx.Done():
			log.Debug("replay stream closed by client")
			return nil
		case c := <-controls:
			switch c.Action {
			case "pause":
				paused = true
			case "resume":
				paused = false
			case "stop":
				log.Debug("replay stream stopped by client")
				return s.write(conn, StreamMessage{Type: MessageState, State: "stopped", Index: next, Total: len(slice.Bars)})
			default:
				if err := s.write(conn, StreamMessage{Type: MessageError, Error: fmt.Sprintf("unknown action %q", c.Action)}); err != nil {
					return err
				}
				continue
			}
			state := "playing"
			if paused {
				state = "paused"
			}
			if err := s.write(conn, StreamMessage{Type: MessageState, State: state, Index: next, Total: len(slice.Bars)}); err != nil {
				return err
			}
		case <-ticker.C:
			if paused {
				continue
			}
			bar := slice.Bars[next]
			if err := s.write(conn, StreamMessage{Type: MessageCandle, Candle: &bar, Index: next, Total: len(slice.Bars)}); err != nil {
				return err
			}
			next++
		}
	}
	return s.write(conn, StreamMessage{Type: MessageDone, Total: len(slice.Bars)})
}

func (s *Streamer) write(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// Package stream implements the per-source streaming supervisor state
// machine using gorilla/websocket for the underlying connections.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	gb "github.com/sony/gobreaker"
	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/circuit"
	"github.com/sawpanic/marketfeed/internal/model"
)

// Source describes one configured streaming source.
type Source struct {
	Name               string
	URL                string
	Category           model.Category
	SubscribeMessage   string
	ReconnectInterval  time.Duration
}

// OnData is invoked after each successful insert; the scheduler wires this
// to a throttled snapshot rebuild trigger. The notification itself is
// required, but the rebuild it drives is a latency optimization, not
// load-bearing for correctness.
type OnData func()

// Insert persists one streaming-derived DataPoint.
type Insert func(ctx context.Context, dp model.DataPoint) error

type state int

const (
	stateConnecting state = iota
	stateConnected
	stateReceiving
	stateClosed
)

// Supervisor runs one source's connect/receive/reconnect loop until ctx is
// cancelled.
type Supervisor struct {
	src     Source
	insert  Insert
	onData  OnData
	log     zerolog.Logger
	reconnectBreaker *gb.CircuitBreaker
}

func NewSupervisor(src Source, insert Insert, onData OnData, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		src:              src,
		insert:           insert,
		onData:           onData,
		log:              log.With().Str("source", src.Name).Logger(),
		reconnectBreaker: circuit.NewReconnectBreaker(src.Name),
	}
}

// Run drives the connecting -> connected -> receiving -> closed state
// machine until ctx.Done(). A failed connect or a closed connection always
// returns to connecting after ReconnectInterval, never terminating except
// on cancellation.
func (s *Supervisor) Run(ctx context.Context) {
	st := stateConnecting
	var conn *websocket.Conn

	for {
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return
		default:
		}

		switch st {
		case stateConnecting:
			c, err := s.connect(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("stream connect failed")
				if !s.sleepReconnect(ctx) {
					return
				}
				continue
			}
			conn = c
			st = stateConnected

		case stateConnected:
			if s.src.SubscribeMessage != "" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(s.src.SubscribeMessage)); err != nil {
					s.log.Warn().Err(err).Msg("stream subscribe write failed")
					conn.Close()
					st = stateClosed
					continue
				}
			}
			st = stateReceiving

		case stateReceiving:
			_, msg, err := conn.ReadMessage()
			if err != nil {
				s.log.Info().Err(err).Msg("stream closed")
				conn.Close()
				st = stateClosed
				continue
			}
			s.handleMessage(ctx, msg)

		case stateClosed:
			if !s.sleepReconnect(ctx) {
				return
			}
			st = stateConnecting
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) (*websocket.Conn, error) {
	result, err := s.reconnectBreaker.Execute(func() (interface{}, error) {
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		conn, _, dialErr := websocket.DefaultDialer.DialContext(dialCtx, s.src.URL, nil)
		if dialErr != nil {
			return nil, fmt.Errorf("dial: %w", dialErr)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Msg("stream connected")
	return result.(*websocket.Conn), nil
}

// tickerFrame is the small fixed mapping a ticker message decodes into:
// s=>symbol, c or p=>value, P=>change_pct, v=>volume.
type tickerFrame struct {
	Symbol    string          `json:"s"`
	Close     json.Number     `json:"c"`
	Price     json.Number     `json:"p"`
	ChangePct json.Number     `json:"P"`
	Volume    json.Number     `json:"v"`
}

func (s *Supervisor) handleMessage(ctx context.Context, raw []byte) {
	// Keys are matched case-sensitively: decoding straight into tickerFrame
	// would let encoding/json fold e.g. "C" into the "c" field.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	var frame tickerFrame
	targets := map[string]interface{}{
		"s": &frame.Symbol, "c": &frame.Close, "p": &frame.Price, "P": &frame.ChangePct, "v": &frame.Volume,
	}
	for key, dst := range targets {
		if v, ok := fields[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return
			}
		}
	}

	value := frame.Close
	if value == "" {
		value = frame.Price
	}
	valueF, err := value.Float64()
	if err != nil || frame.Symbol == "" || valueF <= 0 {
		return
	}

	changePct, _ := frame.ChangePct.Float64()
	volume, _ := frame.Volume.Float64()

	now := time.Now()
	dp := model.DataPoint{
		SourceName: s.src.Name,
		SourceKind: model.SourceStream,
		Category:   s.src.Category,
		Symbol:     frame.Symbol,
		Value:      valueF,
		Currency:   "USDT",
		ChangePct:  changePct,
		Volume:     volume,
		Timestamp:  now,
		IngestedAt: now,
	}

	if err := s.insert(ctx, dp); err != nil {
		s.log.Error().Err(err).Msg("stream insert failed")
		return
	}
	if s.onData != nil {
		s.onData()
	}
}

// sleepReconnect waits ReconnectInterval or returns false if ctx is
// cancelled first.
func (s *Supervisor) sleepReconnect(ctx context.Context) bool {
	timer := time.NewTimer(s.src.ReconnectInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

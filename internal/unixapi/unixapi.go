// Package unixapi is the local-socket front-end: a minimal one-request-one-
// response JSON protocol over a filesystem socket, deliberately implemented
// directly on net.Listen("unix", ...) and encoding/json rather than a
// framework, since the framing itself is a handful of lines.
package unixapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/marketfeed/internal/model"
	"github.com/sawpanic/marketfeed/internal/store"
)

const readTimeout = 5 * time.Second

// Source mirrors httpapi.Source: the minimal read-only surface this front
// end consumes.
type Source interface {
	Snapshot() model.Snapshot
	Store() store.Store
	RequestRefresh()
}

type request struct {
	Path string `json:"path"`
}

// Server handles each accepted connection in its own goroutine: it reads a
// single request object, writes a single JSON response followed by a
// newline, and closes.
type Server struct {
	path string
	src  Source
	log  zerolog.Logger
	ln   net.Listener
}

func New(path string, src Source, log zerolog.Logger) *Server {
	return &Server{path: path, src: src, log: log}
}

// Start unlinks a stale socket file (if present), binds, and serves until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		if rmErr := os.Remove(s.path); rmErr != nil {
			return rmErr
		}
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info().Str("path", s.path).Msg("unix api listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error().Err(err).Msg("unix api accept failed")
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req request
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&req); err != nil {
		s.writeResponse(conn, map[string]interface{}{"error": "invalid request"})
		return
	}

	resp := s.route(ctx, req.Path)
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, v interface{}) {
	enc := json.NewEncoder(conn)
	if err := enc.Encode(v); err != nil {
		s.log.Error().Err(err).Msg("unix api encode response failed")
	}
}

func (s *Server) route(ctx context.Context, path string) interface{} {
	if strings.HasPrefix(path, "/api/v1/entries/") && strings.HasSuffix(path, "/history") {
		symbol := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/entries/"), "/history")
		points, err := s.src.Store().History(ctx, symbol, 100)
		if err != nil {
			return map[string]interface{}{"error": err.Error()}
		}
		return map[string]interface{}{"symbol": symbol, "data": points, "count": len(points)}
	}

	switch path {
	case "/api/v1/entries":
		snap := s.src.Snapshot()
		return map[string]interface{}{"data": snap.Entries, "count": len(snap.Entries)}

	case "/api/v1/news":
		snap := s.src.Snapshot()
		return map[string]interface{}{"data": snap.News, "count": len(snap.News)}

	case "/api/v1/status":
		snap := s.src.Snapshot()
		count, err := s.src.Store().Count(ctx)
		if err != nil {
			count = -1
		}
		return map[string]interface{}{
			"status":          "ok",
			"entries_count":   len(snap.Entries),
			"news_count":      len(snap.News),
			"persisted_count": count,
			"built_at":        snap.BuiltAt,
		}

	case "/api/v1/sources":
		statuses, err := s.src.Store().SourceStatuses(ctx)
		if err != nil {
			return map[string]interface{}{"error": err.Error()}
		}
		now := time.Now()
		type row struct {
			model.SourceStatus
			Health     model.HealthTag `json:"health"`
			SecondsAgo int64           `json:"seconds_ago"`
		}
		out := make([]row, 0, len(statuses))
		for _, st := range statuses {
			secondsAgo := int64(-1)
			if !st.LastFetched.IsZero() {
				secondsAgo = int64(now.Sub(st.LastFetched).Seconds())
			}
			out = append(out, row{SourceStatus: st, Health: st.Health(), SecondsAgo: secondsAgo})
		}
		return map[string]interface{}{"data": out, "count": len(out)}

	case "/api/v1/refresh":
		s.src.RequestRefresh()
		return map[string]interface{}{"status": "refresh_requested"}

	default:
		return map[string]interface{}{"error": "no such endpoint: " + path}
	}
}

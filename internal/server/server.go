// Package server exposes plots and sensors over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/thermals/internal/config"
	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/metrics"
	"codeberg.org/mutker/thermals/internal/plot"
	"codeberg.org/mutker/thermals/internal/sensor"
)

const (
	maxSurface        = 8192
	readHeaderTimeout = 5 * time.Second
)

// Latest resolves the most recent reading of a sensor.
type Latest interface {
	Latest(id sensor.ID) (sensor.Reading, bool)
}

type Config struct {
	Listen      string
	DefaultSpan int64
	Spans       []config.Span
}

type Server struct {
	cfg     Config
	board   *plot.Board
	sensors []sensor.Descriptor
	latest  Latest
	metrics metrics.Collector
	http    *http.Server
}

func New(cfg Config, board *plot.Board, sensors []sensor.Descriptor, latest Latest, m metrics.Collector) *Server {
	s := &Server{
		cfg:     cfg,
		board:   board,
		sensors: append([]sensor.Descriptor(nil), sensors...),
		latest:  latest,
		metrics: m,
	}
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /api/sensors", s.handleSensors)
	mux.HandleFunc("GET /api/spans", s.handleSpans)
	mux.HandleFunc("GET /api/plots", s.handlePlots)
	mux.HandleFunc("GET /api/plots/{unit}/frame", s.withPlot(s.handleFrame))
	mux.HandleFunc("GET /api/plots/{unit}/png", s.withPlot(s.handlePNG))
	mux.HandleFunc("GET /api/plots/{unit}/locate", s.withPlot(s.handleLocate))
	mux.HandleFunc("POST /api/plots/{unit}/clear", s.withPlot(s.handleClear))
	mux.HandleFunc("POST /api/plots/{unit}/invalidate", s.withPlot(s.handleInvalidate))

	return mux
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.New().Wrap(ErrListen, err)
	}
	logger.Info().Str("listen", ln.Addr().String()).Msg("HTTP server started")

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrListen, err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type sensorView struct {
	sensor.Descriptor
	Unit      string   `json:"unit"`
	Value     *float64 `json:"value,omitempty"`
	Formatted string   `json:"formatted,omitempty"`
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	views := make([]sensorView, 0, len(s.sensors))
	for _, d := range s.sensors {
		v := sensorView{Descriptor: d, Unit: d.Unit.Key()}
		if r, ok := s.latest.Latest(d.ID); ok {
			value := r.Value
			v.Value = &value
			v.Formatted = d.Unit.Format(value)
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSpans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Default int64         `json:"default"`
		Spans   []config.Span `json:"spans"`
	}{
		Default: s.cfg.DefaultSpan,
		Spans:   s.cfg.Spans,
	})
}

type plotView struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Sensors []string `json:"sensors"`
}

func (s *Server) handlePlots(w http.ResponseWriter, _ *http.Request) {
	plots := s.board.Plots()
	views := make([]plotView, 0, len(plots))
	for _, p := range plots {
		v := plotView{Key: p.Key(), Title: p.Title()}
		for _, d := range p.Sensors() {
			v.Sensors = append(v.Sensors, string(d.ID))
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) withPlot(next func(http.ResponseWriter, *http.Request, *plot.Plot)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("unit")
		p, ok := s.board.Plot(key)
		if !ok {
			writeError(w, http.StatusNotFound, errors.New().WithData(ErrUnknownPlot, key))
			return
		}
		next(w, r, p)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, p *plot.Plot) (plot.Frame, bool) {
	width, height, err := surface(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return plot.Frame{}, false
	}
	span, err := intParam(r, "span", s.cfg.DefaultSpan)
	if err != nil || span <= 0 {
		writeError(w, http.StatusBadRequest, errors.New().WithData(ErrBadRequest, "span"))
		return plot.Frame{}, false
	}

	start := time.Now()
	frame, err := p.Render(width, height, span)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return plot.Frame{}, false
	}
	s.metrics.ObserveRender(p.Key(), time.Since(start))

	return frame, true
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request, p *plot.Plot) {
	frame, ok := s.render(w, r, p)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request, p *plot.Plot) {
	frame, ok := s.render(w, r, p)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := plot.RenderPNG(&buf, frame); err != nil {
		if errors.HasCode(err, plot.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		logger.Error().Err(err).Str("plot", p.Key()).Msg("Failed to render PNG")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request, p *plot.Plot) {
	width, height, err := surface(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, errors.New().WithData(ErrBadRequest, "x, y"))
		return
	}

	sel, ok := p.Locate(x, y, width, height)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request, p *plot.Plot) {
	writeJSON(w, http.StatusOK, p.Rescan())
}

func (s *Server) handleInvalidate(w http.ResponseWriter, _ *http.Request, p *plot.Plot) {
	p.InvalidateResolution()
	w.WriteHeader(http.StatusNoContent)
}

func surface(r *http.Request) (int, int, error) {
	width, errW := intParam(r, "width", 0)
	height, errH := intParam(r, "height", 0)
	if errW != nil || errH != nil || width <= 0 || height <= 0 || width > maxSurface || height > maxSurface {
		return 0, 0, errors.New().WithData(ErrBadRequest, struct {
			Width  string
			Height string
		}{
			Width:  r.URL.Query().Get("width"),
			Height: r.URL.Query().Get("height"),
		})
	}

	return int(width), int(height), nil
}

func intParam(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(errors.ErrInternal),
		Message: err.Error(),
	}
	var appErr errors.Error
	if errors.As(err, &appErr) {
		body.Code = string(appErr.Code())
	}

	writeJSON(w, status, body)
}

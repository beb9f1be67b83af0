package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"skipdb/pkg/core"
	"skipdb/pkg/monitor"
	"skipdb/pkg/sql"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrBadQuery     = errors.New("bad query")
)

// Result is the answer to one SELECT.
type Result struct {
	Table     string `json:"table"`
	Plan      string `json:"plan"`
	Rows      []any  `json:"rows"`
	Count     int    `json:"count"`
	LatencyNS int64  `json:"latency_ns"`
}

type Server struct {
	mutex    sync.RWMutex
	tables   map[string]Table
	mon      *monitor.Monitor
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

func NewServer(mon *monitor.Monitor, gatherer prometheus.Gatherer) *Server {
	return &Server{
		tables:   make(map[string]Table),
		mon:      mon,
		gatherer: gatherer,
		log:      slog.Default().With("component", "api"),
	}
}

// Register makes t queryable under name (case-insensitive).
func (s *Server) Register(name string, t Table) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tables[strings.ToLower(name)] = t
}

func (s *Server) table(name string) (Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, ok := s.tables[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTable, name)
	}
	return t, nil
}

// Query parses and runs one SELECT statement.
func (s *Server) Query(text string) (*Result, error) {
	stmt, err := sql.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	t, err := s.table(stmt.Table)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, plan, err := t.Find(stmt.ToQuery())
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []any{}
	}
	return &Result{
		Table:     stmt.Table,
		Plan:      plan,
		Rows:      rows,
		Count:     len(rows),
		LatencyNS: time.Since(start).Nanoseconds(),
	}, nil
}

// Explain plans one SELECT statement without running it.
func (s *Server) Explain(text string) (string, error) {
	stmt, err := sql.Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadQuery, err)
	}
	t, err := s.table(stmt.Table)
	if err != nil {
		return "", err
	}
	return t.Explain(stmt.ToQuery())
}

// Handler returns the HTTP routes:
//
//	GET /api/query?sql=...    rows as JSON
//	GET /api/explain?sql=...  plan only
//	GET /api/stats            table sizes, indexes and workload counters
//	GET /metrics              Prometheus scrape
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/explain", s.handleExplain)
	mux.HandleFunc("/api/stats", s.handleStats)
	if s.gatherer != nil {
		mux.Handle("/metrics", monitor.Handler(s.gatherer))
	}
	return mux
}

func (s *Server) Start(addr string) error {
	s.log.Info("server listening", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, ErrBadQuery),
		errors.Is(err, core.ErrUnregisteredField),
		errors.Is(err, core.ErrInvalidLiteral),
		errors.Is(err, core.ErrUnsupportedOperator):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.Query(r.URL.Query().Get("sql"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	plan, err := s.Explain(r.URL.Query().Get("sql"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan": plan})
}

type tableStats struct {
	Name    string            `json:"name"`
	Records int               `json:"records"`
	Indexes []core.IndexStats `json:"indexes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.mutex.RLock()
	tables := make([]tableStats, 0, len(s.tables))
	for name, t := range s.tables {
		tables = append(tables, tableStats{Name: name, Records: t.Len(), Indexes: t.Indexes()})
	}
	s.mutex.RUnlock()
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	resp := map[string]any{"tables": tables}
	if s.mon != nil {
		resp["reads"] = s.mon.Stats.Reads()
		resp["writes"] = s.mon.Stats.Writes()
		resp["rw_ratio"] = s.mon.Stats.GetReadWriteRatio()
		resp["index_hit_ratio"] = s.mon.Stats.IndexHitRatio()
	}
	writeJSON(w, http.StatusOK, resp)
}

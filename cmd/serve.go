package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/model"
	"github.com/sells-group/insider-scan/internal/resilience"
	"github.com/sells-group/insider-scan/internal/scan"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScanner()
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/scan/{ticker}", handleScan(env))
			r.Get("/latest", handleLatest(env))
			r.Get("/congress", handleCongress(env))
			r.Get("/resolve/{ticker}", handleResolve(env))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// scanResponse is the JSON envelope for scan endpoints.
type scanResponse struct {
	ScanID  string              `json:"scan_id"`
	Sources []scan.SourceResult `json:"sources"`
	Records any                 `json:"records"`
}

func handleScan(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ticker := chi.URLParam(req, "ticker")
		opts, err := optionsFromQuery(req)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		records, summary, err := env.Scanner.ScanTicker(req.Context(), ticker, opts)
		if err != nil && len(records) == 0 {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}

		writeJSON(w, http.StatusOK, scanResponse{
			ScanID:  summary.ScanID,
			Sources: summary.Sources,
			Records: records,
		})
	}
}

func handleLatest(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		count := 100
		if s := req.URL.Query().Get("count"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSONError(w, http.StatusBadRequest, eris.Errorf("invalid count %q", s))
				return
			}
			count = n
		}
		var since time.Time
		if s := req.URL.Query().Get("since"); s != "" {
			d, err := time.Parse(dateFmt, s)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, eris.Errorf("invalid since %q", s))
				return
			}
			since = d
		}
		opts, err := optionsFromQuery(req)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		records, summary, err := env.Scanner.ScanLatest(req.Context(), count, since, opts)
		if err != nil && len(records) == 0 {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}

		writeJSON(w, http.StatusOK, scanResponse{
			ScanID:  summary.ScanID,
			Sources: summary.Sources,
			Records: records,
		})
	}
}

func handleCongress(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		dr, err := rangeFromQuery(req)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}

		var chambers []model.Chamber
		for _, c := range q["chamber"] {
			switch c {
			case "house":
				chambers = append(chambers, model.ChamberHouse)
			case "senate":
				chambers = append(chambers, model.ChamberSenate)
			default:
				writeJSONError(w, http.StatusBadRequest, eris.Errorf("unknown chamber %q", c))
				return
			}
		}

		records, summary, err := env.Scanner.ScanCongress(req.Context(), q.Get("official"), dr, chambers)
		if err != nil && len(records) == 0 {
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}

		writeJSON(w, http.StatusOK, scanResponse{
			ScanID:  summary.ScanID,
			Sources: summary.Sources,
			Records: records,
		})
	}
}

func handleResolve(env *scanEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := env.Edgar.Resolve(req.Context(), chi.URLParam(req, "ticker"))
		if err != nil {
			if resilience.IsNotFound(err) {
				writeJSONError(w, http.StatusNotFound, err)
				return
			}
			writeJSONError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"ticker":  id.Ticker,
			"cik":     id.CIK,
			"company": id.Title,
		})
	}
}

// optionsFromQuery translates shared query parameters into scan options.
func optionsFromQuery(req *http.Request) (scan.Options, error) {
	var opts scan.Options
	q := req.URL.Query()

	dr, err := rangeFromQuery(req)
	if err != nil {
		return opts, err
	}
	opts.Range = dr
	opts.Filters.Range = dr
	opts.Filters.AffiliatedOnly = q.Get("affiliated") == "true"

	for _, t := range q["type"] {
		tt, err := parseTradeType(t)
		if err != nil {
			return opts, err
		}
		opts.Filters.Types = append(opts.Filters.Types, tt)
	}
	for _, s := range q["source"] {
		src, err := parseSource(s)
		if err != nil {
			return opts, err
		}
		opts.Sources = append(opts.Sources, src)
	}
	if s := q.Get("min_value"); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return opts, eris.Errorf("invalid min_value %q", s)
		}
		opts.Filters.MinValue = v
	}
	return opts, nil
}

func rangeFromQuery(req *http.Request) (model.DateRange, error) {
	q := req.URL.Query()
	var dr model.DateRange
	if s := q.Get("from"); s != "" {
		d, err := time.Parse(dateFmt, s)
		if err != nil {
			return dr, eris.Errorf("invalid from %q", s)
		}
		dr.From = d
	}
	if s := q.Get("to"); s != "" {
		d, err := time.Parse(dateFmt, s)
		if err != nil {
			return dr, eris.Errorf("invalid to %q", s)
		}
		dr.To = d
	}
	return dr, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

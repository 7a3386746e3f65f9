package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-scan/internal/cache"
	"github.com/sells-group/insider-scan/internal/fetcher"
	"github.com/sells-group/insider-scan/internal/pdftext"
	"github.com/sells-group/insider-scan/internal/roster"
	"github.com/sells-group/insider-scan/internal/scan"
	"github.com/sells-group/insider-scan/internal/sources"
	"github.com/sells-group/insider-scan/pkg/edgar"
)

// scanEnv holds the initialized fetcher, clients, and scanner shared by the
// scan/latest/congress/serve commands.
type scanEnv struct {
	Fetcher fetcher.Fetcher
	Edgar   *edgar.Client
	Roster  *roster.Roster
	Scanner *scan.Scanner

	sqliteCache *cache.SQLite
}

// Close releases resources held by the scan environment.
func (se *scanEnv) Close() {
	if se.sqliteCache != nil {
		_ = se.sqliteCache.Close()
	}
}

// initScanner sets up the cache, fetcher, EDGAR client, roster, and source
// adapters, and builds the Scanner. Callers should defer env.Close().
func initScanner() (*scanEnv, error) {
	env := &scanEnv{}

	var store cache.Store
	switch cfg.Cache.Driver {
	case "sqlite":
		sq, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite cache")
		}
		env.sqliteCache = sq
		store = sq
	default:
		store = cache.NewMemory()
	}

	env.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.SEC.UserAgent,
		Timeout:      time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.HTTP.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
		Cache:        store,
	})

	env.Edgar = edgar.NewClient(env.Fetcher)

	r, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load roster")
	}
	env.Roster = r

	var trades []sources.TradeAdapter
	if cfg.Sources.OpenInsider {
		trades = append(trades, sources.NewOpenInsider(env.Fetcher, cfg.Sources.OpenInsiderBase))
	}
	if cfg.Sources.SecForm4 {
		trades = append(trades, sources.NewSecForm4(env.Fetcher, env.Edgar, cfg.Sources.SecForm4Base))
	}

	var congress []sources.CongressAdapter
	if cfg.Sources.House {
		extractor := pdftext.NewPdfToText(cfg.House.PdfToTextPath)
		congress = append(congress, sources.NewHouse(env.Fetcher, extractor, cfg.Sources.HouseBase, cfg.House.IndexDir))
	}
	if cfg.Sources.Senate {
		congress = append(congress, sources.NewSenate(env.Fetcher, cfg.Sources.SenateBase))
	}

	env.Scanner = scan.NewScanner(env.Edgar, env.Roster, trades, congress)

	zap.L().Debug("scanner initialized",
		zap.Int("trade_adapters", len(trades)),
		zap.Int("congress_adapters", len(congress)),
		zap.String("cache_driver", cfg.Cache.Driver),
	)
	return env, nil
}

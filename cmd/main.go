// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tz-search/internal/api"
	"tz-search/internal/config"
	"tz-search/internal/geoip"
	"tz-search/internal/logger"
	"tz-search/internal/metrics"
	"tz-search/internal/middleware"
	"tz-search/internal/migrate"
	"tz-search/internal/reload"
	"tz-search/internal/store"
	"tz-search/internal/utils"
	"tz-search/pkg/origindefense"
	"tz-search/pkg/tzsearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L().Error("config_error", "err", err)
		os.Exit(1)
	}
	// 日志初始化
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.Server.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.NeedsPostgres() {
		db, err := utils.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		l.Info("db_open_ok", "host", cfg.Postgres.Host, "db", cfg.Postgres.Name)
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		defer st.Close()
	}

	rc := utils.OpenRedis(cfg.Redis)
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok", "addr", cfg.Redis.Addr())
		}
		defer rc.Close()
	}

	var geo api.IPLocator
	if loc, err := geoip.Open(cfg.GeoIP.Path); err == nil {
		geo = loc
		defer loc.Close()
	} else if errors.Is(err, geoip.ErrDisabled) {
		l.Info("geoip_disabled")
	} else {
		l.Error("geoip_open_error", "err", err)
	}

	// 文档注释：数据集加载
	// 背景：启动时同步加载一次，失败即退出，避免对外提供空结果；之后由定时任务与管理端点刷新。
	var src reload.Source = reload.FileSource{Path: cfg.Dataset.Path}
	if cfg.Dataset.Source == config.SourcePostgres {
		src = reload.PostgresSource{Store: st}
	}
	opts := []tzsearch.Option{tzsearch.WithCellSize(cfg.Dataset.CellSize)}
	if cfg.Dataset.NearestRadius > 0 {
		opts = append(opts, tzsearch.WithNearest(cfg.Dataset.NearestRadius))
	}
	holder := &reload.Holder{}
	rl := reload.New(src, holder, opts...)
	if err := rl.Reload(ctx); err != nil {
		l.Error("dataset_load_error", "source", src.Name(), "err", err)
		os.Exit(1)
	}
	reload.StartPeriodic(ctx, rl, cfg.Dataset.ReloadInterval)

	var stats *store.Store
	if cfg.Postgres.Stats {
		stats = st
	}
	svc := api.NewService(api.Options{
		Holder:     holder,
		Reloader:   rl,
		Redis:      rc,
		GeoIP:      geo,
		Stats:      stats,
		AdminToken: cfg.Server.AdminToken,
		CacheSize:  cfg.Cache.Size,
		CacheTTL:   cfg.Cache.TTL,
		RedisTTL:   cfg.Cache.RedisTTL,
	})

	mux := http.NewServeMux()
	base := cfg.Server.APIBase
	mux.Handle(base+"/", http.StripPrefix(base, api.BuildRoutes(svc)))
	mux.Handle(base+"/metrics", metrics.Handler())

	// 中间件顺序：请求 ID 最外层，访问日志可带上 ID；限流放在最内层，被拒请求同样留下日志
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		logger.AccessMiddleware(l),
		middleware.Recover(l),
	}
	if cfg.OriginGuard.Enabled {
		og := origindefense.New(origindefense.Options{
			AllowIPs:     cfg.OriginGuard.AllowIPs,
			AllowCIDRs:   cfg.OriginGuard.AllowCIDRs,
			AllowLocal:   cfg.OriginGuard.AllowLocal,
			RealIPHeader: cfg.OriginGuard.RealIPHeader,
		}, l)
		mws = append(mws, og.Wrap)
		l.Info("origin_defense_enabled", "cidrs", len(cfg.OriginGuard.AllowCIDRs), "ips", len(cfg.OriginGuard.AllowIPs))
	}
	mws = append(mws, middleware.EdgeOneGeo)
	if cfg.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit.QPS))
		l.Info("rate_limit_enabled", "qps", cfg.RateLimit.QPS)
	}

	s := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "tz-search.local"); err != nil {
				errCh <- err
				return
			}
			l.Info("listening_tls", "addr", s.Addr, "cert", cfg.TLS.CertPath)
			errCh <- s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		l.Info("listening", "addr", s.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		l.Info("shutdown_done", "at", time.Now().UTC().Format(time.RFC3339))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/admin"
	api "github.com/mind-engage/mindengage-quizdesk/internal/api/http"
	auth "github.com/mind-engage/mindengage-quizdesk/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdesk/internal/config"
	"github.com/mind-engage/mindengage-quizdesk/internal/db"
	"github.com/mind-engage/mindengage-quizdesk/internal/desk"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/gateway"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/metrics"
	"github.com/mind-engage/mindengage-quizdesk/internal/scheduler"
	"github.com/mind-engage/mindengage-quizdesk/internal/session"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/storage"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

func main() {
	cfg := config.FromEnv()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	defer dbh.Close()

	sessions, err := session.NewStore(session.NewSQLKV(dbh), cfg.SessionSealSecret, log)
	if err != nil {
		log.WithError(err).Fatal("session store")
	}
	deviceID, err := sessions.DeviceID(ctx)
	if err != nil {
		log.WithError(err).Fatal("device id")
	}
	events := syncx.NewEventRepo(dbh, deviceID)

	// --- Remote backend ---
	gwOpts := []gateway.Option{
		gateway.WithRetry(cfg.RetryMax, cfg.RetryBackoff),
		gateway.WithLogger(log),
	}
	if cfg.RemoteTimeout > 0 {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout}))
	}
	if cfg.CacheEnabled() {
		rc := gateway.NewRedisCache(cfg.RedisAddr, cfg.CacheTTL, log)
		if err := rc.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, response cache disabled")
		} else {
			gwOpts = append(gwOpts, gateway.WithCache(rc))
			defer rc.Close()
		}
	}
	gw, err := gateway.New(cfg.RemoteURL, gwOpts...)
	if err != nil {
		log.WithError(err).Fatal("gateway")
	}
	backend := sheets.New(gw)

	// --- Tutor ---
	var tut *tutor.Tutor
	if cfg.GeminiAPIKey != "" {
		tut = tutor.New(tutor.NewGemini(cfg.GeminiAPIKey, cfg.GeminiURL, cfg.GeminiModel, &http.Client{Timeout: 60 * time.Second}), log)
	} else {
		log.Info("GEMINI_API_KEY not set, tutor answers with the fallback message")
	}

	// --- Desk ---
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	d := desk.New(desk.Deps{
		API:       backend,
		Store:     sessions,
		Grader:    grading.NewEngine(),
		Tutor:     tut,
		Scheduler: sched,
		Journal:   events,
		Log:       log,
	}, desk.Config{
		TabSwitchLimit:    cfg.TabSwitchLimit,
		PassThreshold:     cfg.PassThreshold,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	if err := d.Restore(ctx); err != nil {
		log.WithError(err).Warn("stored session not restored")
	}

	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.WithError(err).Fatal("blob store")
	}
	adminOpts := []admin.Option{
		admin.WithGenerator(exam.NewGenerator(0)),
		admin.WithBlobStore(blobs),
		admin.WithLogger(log),
	}
	if tut != nil {
		adminOpts = append(adminOpts, admin.WithTutor(tut))
	}
	panel := admin.New(backend, cfg.PublicURL, adminOpts...)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	srv := &api.Server{
		Desk:        d,
		Admin:       panel,
		Auth:        auth.NewAuthService(cfg.AuthHMACSecret),
		Blobs:       blobs,
		Events:      events,
		EnableGuest: cfg.EnableGuest,
		Log:         log,
	}
	srv.Mount(r)
	if cfg.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode, "db": cfg.DBDriver, "device": deviceID}).Info("listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := hs.Shutdown(shutdown); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

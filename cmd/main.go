package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tempest "tempest_bridge"
	_ "tempest_bridge/docs"
	"tempest_bridge/internal/config"
	"tempest_bridge/internal/feedsim"
	"tempest_bridge/internal/handlers"
	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/metric"
	"tempest_bridge/internal/repository"
	"tempest_bridge/internal/repository/db"
	"tempest_bridge/internal/server"
	"tempest_bridge/internal/service"
	"tempest_bridge/internal/sink"
)

const (
	simTick         = 3 * time.Second
	shutdownTimeout = 10 * time.Second
	sinkConnectWait = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	simulate := flag.Bool("simulate", false, "serve a local synthetic feed and connect to it")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", service.DefaultTokenTTL, "lifetime of -issue-token tokens")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Get(cfg.Log.Level)

	if *issueToken != "" {
		if err := printToken(cfg.HTTP.JWTSecret, *issueToken, *tokenTTL); err != nil {
			log.Fatalw("issue token failed", "err", err)
		}
		return
	}

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *simulate {
		if err := startSimulator(ctx, cfg, log.Named("feedsim")); err != nil {
			log.Fatalw("failed to start feed simulator", "err", err)
		}
	}

	sqlDB, err := openDB(cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	metrics, err := metric.New()
	if err != nil {
		log.Fatalw("failed to register metrics", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	bridge, err := tempest.New(cfg,
		tempest.WithLogger(log.Named("stream")),
		tempest.WithMetrics(metrics),
		tempest.WithJournal(repos.EventRepo),
	)
	if err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}
	services := service.NewService(bridge.Stream(), repos, cfg.HTTP.JWTSecret)
	if services.Authorization == nil {
		log.Warnw("http.jwt_secret not set; status API is unauthenticated")
	}

	fanout := buildSinks(ctx, cfg, log, metrics)

	var srv *server.Server
	if cfg.HTTP.Enabled {
		srv = &server.Server{}
		apiHandler := handlers.NewHandler(services, metrics.Handler(), log.Named("http"))
		runHTTPServer(srv, cfg.HTTP.Port, apiHandler, log)
	}

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		consume(ctx, bridge, fanout, log)
	}()

	// graceful shutdown
	waitForShutdown(cancel, consumed, bridge, srv, fanout, log)
}

func printToken(secret, subject string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("http.jwt_secret is empty")
	}
	token, err := service.NewAuthService(secret).GenerateToken(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// startSimulator serves a synthetic feed on a loopback port and points cfg at it.
func startSimulator(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	sim := feedsim.NewServer(feedsim.Options{
		Token:      cfg.Feed.PersonalToken,
		TokenParam: cfg.Feed.TokenParam,
	}, log)
	go func() {
		if err := http.Serve(ln, sim); err != nil {
			log.Infow("feedsim_stopped", "err", err)
		}
	}()
	context.AfterFunc(ctx, func() { _ = ln.Close() })
	go sim.Run(ctx, cfg.Feed.DeviceID, simTick)

	cfg.Feed.Endpoint = "ws://" + ln.Addr().String() + "/swd/data"
	log.Infow("feedsim_listening", "endpoint", cfg.Feed.Endpoint)
	return nil
}

func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", config.DefaultDBPath)
		path = config.DefaultDBPath
	}
	return db.InitDB(path)
}

// buildSinks always logs records; MQTT, NATS and Kafka are added when configured.
// A sink that cannot connect at startup is skipped.
func buildSinks(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metric.Metrics) *sink.Fanout {
	pubs := []sink.Publisher{sink.NewLogSink(log.Named("records"))}

	if sc := cfg.Sinks.MQTT; sc.Broker != "" {
		cctx, cancel := context.WithTimeout(ctx, sinkConnectWait)
		p, err := sink.NewMQTTSink(cctx, sink.MQTTConfig{
			Broker:   sc.Broker,
			ClientID: sc.ClientID,
			Topic:    sc.Topic,
			QoS:      byte(sc.QoS),
			Username: sc.Username,
			Password: sc.Password,
		}, log.Named("mqtt"))
		cancel()
		if err != nil {
			log.Errorw("mqtt_sink_disabled", "err", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if sc := cfg.Sinks.NATS; sc.URL != "" {
		p, err := sink.NewNATSSink(sc.URL, sc.Subject, log.Named("nats"))
		if err != nil {
			log.Errorw("nats_sink_disabled", "err", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if sc := cfg.Sinks.Kafka; len(sc.Brokers) > 0 {
		pubs = append(pubs, sink.NewKafkaSink(sc.Brokers, sc.Topic, cfg.Feed.DeviceID))
	}

	log.Infow("sinks_configured", "count", len(pubs))
	return sink.NewFanout(log.Named("sinks"), m, pubs...)
}

// consume is the host driver loop: pull a record, forward it, repeat.
func consume(ctx context.Context, dev tempest.Device, out *sink.Fanout, log *logger.Logger) {
	if err := dev.Start(ctx); err != nil {
		if !errors.Is(err, service.ErrStreamClosed) && ctx.Err() == nil {
			log.Errorw("stream_start_failed", "err", err)
		}
		return
	}
	for {
		rec, err := dev.NextRecord(ctx)
		if err != nil {
			if errors.Is(err, service.ErrStreamClosed) || ctx.Err() != nil {
				return
			}
			log.Errorw("stream_ended", "err", err)
			return
		}
		_ = out.Publish(ctx, rec)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = config.DefaultHTTPPort
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until a termination signal or the end of the stream,
// then stops everything in reverse order of startup.
func waitForShutdown(cancel context.CancelFunc, consumed <-chan struct{}, dev tempest.Device, srv *server.Server, out *sink.Fanout, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Infow("shutting down...")
	case <-consumed:
		log.Infow("stream finished; shutting down...")
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := dev.Stop(ctx); err != nil {
		log.Warnw("stream_stop_failed", "err", err)
	}
	<-consumed

	// stop background goroutines
	cancel()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
	}
	if err := out.Close(ctx); err != nil {
		log.Warnw("sink_close_failed", "err", err)
	}
}

package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketdash/internal/auth"
	"marketdash/internal/cache"
	"marketdash/internal/config"
	grpcapi "marketdash/internal/grpc"
	"marketdash/internal/httpapi"
	"marketdash/internal/logging"
	"marketdash/internal/market"
	"marketdash/internal/pubsub"
	"marketdash/internal/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	symbols, err := config.LoadSymbols(cfg.Market.SymbolsFile)
	if err != nil {
		logger.Fatal("Failed to load symbols", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := market.NewGenerator(symbols, market.IndexOptions{
		Base:        cfg.Market.IndexBase,
		Points:      cfg.Market.IndexPoints,
		SensexRatio: cfg.Market.SensexRatio,
	}, market.NewRand(time.Now().UnixNano()), market.RealClock{})
	mkt := cache.NewMarket(gen, cfg.Cache.QuotesTTL, cfg.Cache.IndexTTL, nil, logger)

	broker := pubsub.NewBroker()
	if err := broker.Start(ctx); err != nil {
		logger.Fatal("Failed to start broker", zap.Error(err))
	}
	mkt.Subscribe(broker)

	var closers []func() error

	if cfg.Redis.Addr != "" {
		rs := sink.NewRedis(sink.NewRedisClient(cfg.Redis), cfg.Redis.Key, cfg.Redis.Channel, logger)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rs.Ping(pingCtx)
		pingCancel()
		if err != nil {
			logger.Warn("Redis unreachable, snapshot mirroring disabled",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			rs.Close()
		} else {
			mkt.Subscribe(rs)
			closers = append(closers, rs.Close)
			logger.Info("Mirroring snapshots to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ks := sink.NewKafka(sink.NewKafkaWriter(cfg.Kafka), logger)
		mkt.Subscribe(ks)
		closers = append(closers, ks.Close)
		logger.Info("Publishing quotes to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	// Ticking at the TTL itself would usually find the entry exactly at its
	// TTL, which still counts as fresh, and skip a whole period.
	go mkt.Run(ctx, 0)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	gate := auth.NewGate(issuer)
	state := &httpapi.ServerState{
		Users:  auth.NewUserStore(cfg.Auth.BcryptCost),
		Market: mkt,
		Issuer: issuer,
		Gate:   gate,
		Broker: broker,
	}

	srv := httpapi.NewServer(cfg.Server, state, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	var grpcServer interface{ GracefulStop() }
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", cfg.GRPC.Port)
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.String("addr", cfg.GRPC.Port), zap.Error(err))
		}

		gs, healthServer := grpcapi.NewServer(grpcapi.NewMarketDataService(mkt, broker, logger), gate, logger)
		grpcServer = gs
		closers = append(closers, func() error {
			healthServer.Shutdown()
			return nil
		})

		go func() {
			logger.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
			if err := gs.Serve(lis); err != nil {
				logger.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("Server started",
		zap.String("env", cfg.Server.Env),
		zap.Int("symbols", len(symbols)),
		zap.Duration("quotes_ttl", cfg.Cache.QuotesTTL),
		zap.Duration("refresh_interval", mkt.RefreshInterval(0)),
		zap.Duration("index_ttl", cfg.Cache.IndexTTL))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stopping the broker closes every subscriber channel, which ends open
	// websocket and gRPC streams.
	cancel()
	broker.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("Close failed", zap.Error(err))
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info("Server stopped", zap.Int("users", state.Users.Count()))
}

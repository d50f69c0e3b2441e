package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"tern/api/grpcserver"
	"tern/api/wire"
	"tern/api/ws"
	"tern/domain/book"
	"tern/infra/feed"
	"tern/infra/outbox"
	"tern/infra/sequence"
	"tern/infra/wal"
	"tern/jobs/broadcaster"
	"tern/jobs/depthfeed"
	"tern/service"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	grpcAddr := getEnv("GRPC_ADDR", ":50051")
	httpAddr := getEnv("HTTP_ADDR", ":8080")
	walDir := getEnv("WAL_DIR", "./wal_data")
	outboxDir := getEnv("OUTBOX_DIR", "./outbox_data")
	brokers := splitList(os.Getenv("KAFKA_BROKERS"))
	tradeTopic := getEnv("TRADES_TOPIC", "tern.trades")
	depthTopic := getEnv("DEPTH_TOPIC", "tern.depth")
	depthEvery := time.Duration(parseIntEnv("DEPTH_EVERY_MS", 500)) * time.Millisecond
	depthLimit := int(parseIntEnv("DEPTH_LIMIT", 20))
	pruneHour := int(parseIntEnv("PRUNE_HOUR", 16))

	// ---------------- Journal ----------------

	journal, err := wal.Open(wal.Config{
		Dir:             walDir,
		SegmentSize:     2 * 1024 * 1024,
		SegmentDuration: time.Minute,
	})
	if err != nil {
		log.Fatal("journal init failed", zap.Error(err))
	}
	defer func() { _ = journal.Close() }()

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(outboxDir)
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer func() { _ = ob.Close() }()

	// ---------------- Service ----------------

	seqGen := sequence.New(0)
	svc := service.New(journal, ob, seqGen, log, book.WithPruneHour(pruneHour))
	defer svc.Close()

	if err := svc.Replay(walDir); err != nil {
		log.Fatal("journal replay failed", zap.Error(err))
	}

	// ---------------- Background jobs ----------------

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(brokers) > 0 {
		bc, err := broadcaster.New(ob, brokers, tradeTopic, 250*time.Millisecond, log)
		if err != nil {
			log.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer func() { _ = bc.Close() }()
		go bc.Run(ctx)

		producer := feed.NewProducer(brokers, depthTopic)
		defer func() { _ = producer.Close() }()
		go depthfeed.New(svc, producer, depthEvery, depthLimit, log).Run(ctx)
	}

	// ---------------- HTTP market data ----------------

	wsSrv := ws.NewServer(svc, log, depthEvery, depthLimit)
	httpSrv := &http.Server{Addr: httpAddr, Handler: wsSrv.Routes()}
	go func() {
		log.Info("market data listening", zap.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited", zap.Error(err))
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}

	grpcSrv := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc, log))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
	}()

	log.Info("engine listening", zap.String("addr", grpcAddr))
	if err := grpcSrv.Serve(lis); err != nil {
		log.Fatal("grpc server exited", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package main

import (
	"errors"
	"log"
	"net"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/zielm/covid-analysis/internal/logging"
	"github.com/zielm/covid-analysis/internal/report"
)

// #region main
// sink receives run reports over gRPC and logs them.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	addr := envOr("REPORT_LISTEN", "localhost:50061")
	logger := logging.NewLogger(os.Stderr, envOr("LOG_LEVEL", "info"))

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen %s: %v", addr, err)
	}

	srv := grpc.NewServer()
	report.RegisterReportSinkServer(srv, report.NewCollector(logger))

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop
		logger.Info("shutting down")
		srv.GracefulStop()
	}()

	logger.Info("report sink listening", "addr", addr)
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers

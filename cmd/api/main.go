package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"permatrix.org/internal/auth"
	"permatrix.org/internal/avatar"
	"permatrix.org/internal/httpapi"
	"permatrix.org/internal/obs"
	"permatrix.org/internal/perm"
	"permatrix.org/internal/store/pg"
	"permatrix.org/internal/stream"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("PERMATRIX_COMMIT"))

	dsn := os.Getenv("PERMATRIX_PG_DSN")
	if dsn == "" {
		log.Fatal("missing PERMATRIX_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	service, err := perm.NewService(store, auth.Guard{}, avatar.Token)
	if err != nil {
		log.Fatalf("permission service: %v", err)
	}

	changes := stream.New()
	api := httpapi.New(service, store, changes, httpapi.ReadyProbe{Pinger: store}, version)

	addr := os.Getenv("PERMATRIX_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := httpapi.NewGRPCServer()
	grpcAddr := os.Getenv("PERMATRIX_GRPC_ADDR")
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	obs.LogEvent("info", "starting", map[string]any{
		"service": "permatrix-api",
		"version": version,
		"addr":    addr,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)
	grpcSrv.SetServing(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.SetReady(false)
	grpcSrv.SetServing(false)
	obs.LogEvent("info", "shutting_down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcAddr != "" {
		grpcSrv.GracefulStop()
	}
	obs.LogEvent("info", "stopped", nil)
}

package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	lettersapi "github.com/BearBump/LetterTrack/internal/api/letters_api"
	"github.com/BearBump/LetterTrack/internal/services/letters"
)

type letterAPIOpts struct {
	httpAddr string

	onListen func(httpAddr string)
}

func runLetterAPI(ctx context.Context, opts letterAPIOpts, svc *letters.Service) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	api := lettersapi.New(svc)
	srv := &http.Server{Handler: api.Router()}

	// Периодические проходы + ручной Trigger.
	go func() { _ = svc.Run(ctx) }()

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

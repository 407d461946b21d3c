package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/issuer"
	"github.com/joho/godotenv"
)

func main() {
	var (
		addr     = flag.String("addr", ":8081", "listen address")
		provider = flag.String("provider", "openai", "provider (openai, gemini)")
		envFile  = flag.String("env", ".env", "dotenv file, ignored when missing")
		origins  = flag.String("allow-origins", "*", "comma separated CORS origins")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		panic(fmt.Errorf("invalid log level [%s]: %w", *logLevel, err))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to load env file", slog.String("file", *envFile), slog.Any("err", err))
		os.Exit(1)
	}

	key := "OPENAI_API_KEY"
	if config.Provider(*provider) == config.ProviderGemini {
		key = "GEMINI_API_KEY"
	}

	srv, err := issuer.NewServer(issuer.Config{
		Addr:         *addr,
		Provider:     config.Provider(*provider),
		APIKey:       os.Getenv(key),
		Model:        os.Getenv("RTVOICE_MODEL"),
		Voice:        os.Getenv("RTVOICE_VOICE"),
		AllowOrigins: strings.Split(*origins, ","),
	}, nil)
	if err != nil {
		slog.Error("failed to create issuer", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Minute):
				slog.Info("issuer stats", slog.Any("stats", srv.Stats()))
			}
		}
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("issuer stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

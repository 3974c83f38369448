package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chuangbo/basicauth"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("BASICAUTH_CONFIG", "basicauth.toml"), "Server config file")
	flag.Parse()

	cfg, err := basicauth.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if secret := os.Getenv("BASICAUTH_TOKEN_SECRET"); secret != "" {
		cfg.TokenSecret = secret
	}

	fx.New(
		fx.Supply(cfg),
		fx.Provide(provideLogger),
		fx.Provide(basicauth.NewServer),
		fx.Invoke(registerHooks),
		fx.NopLogger,
	).Run()
}

func provideLogger(cfg basicauth.Config) *zap.Logger {
	return basicauth.NewLogger(cfg.LogFile)
}

func registerHooks(lc fx.Lifecycle, sh fx.Shutdowner, s *basicauth.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.ListenAndServe(); err != nil {
					logger.Error("server stopped", zap.Error(err))
					_ = sh.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			err := s.Shutdown()
			_ = logger.Sync()
			return err
		},
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

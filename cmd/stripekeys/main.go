package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/stripekeys/internal/app"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
	"github.com/atvirokodosprendimai/stripekeys/internal/logging"
)

func main() {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	log := logging.NewLogger(logging.Options{ServiceName: "stripekeys"})

	cmd := &cli.Command{
		Name:  "stripekeys",
		Usage: "Store and inspect Stripe API keys",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("STRIPEKEYS_LOG_LEVEL"),
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "log-pretty",
				Sources: cli.EnvVars("STRIPEKEYS_LOG_PRETTY"),
				Usage:   "Human readable console logs",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log = logging.NewLogger(logging.Options{
				ServiceName: "stripekeys",
				Level:       c.String("log-level"),
				Pretty:      c.Bool("log-pretty"),
			})
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   ":8080",
						Sources: cli.EnvVars("STRIPEKEYS_ADDR"),
						Usage:   "HTTP listen address",
					},
					dbPathFlag(),
					&cli.StringFlag{
						Name:    "admin-token",
						Sources: cli.EnvVars("STRIPEKEYS_ADMIN_TOKEN"),
						Usage:   "Bearer token required on /v1 routes",
					},
					&cli.StringFlag{
						Name:    "bootstrap-file",
						Sources: cli.EnvVars("STRIPEKEYS_BOOTSTRAP_FILE"),
						Usage:   "Optional YAML file of keys to get-or-create at startup",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return serve(ctx, log, app.Config{
						Addr:          c.String("addr"),
						DBPath:        c.String("db-path"),
						AdminToken:    c.String("admin-token"),
						BootstrapFile: c.String("bootstrap-file"),
					})
				},
			},
			{
				Name:      "import",
				Usage:     "Get-or-create every key listed in a YAML file",
				ArgsUsage: "<file>",
				Flags:     []cli.Flag{dbPathFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return errors.New("expected exactly one file argument")
					}
					store, err := app.OpenStore(ctx, c.String("db-path"), nil, log)
					if err != nil {
						return err
					}
					defer store.Close()

					results, err := app.ImportFile(ctx, store.APIKeys, c.Args().First())
					for _, r := range results {
						state := "existing"
						if r.Created {
							state = "created"
						}
						fmt.Fprintf(os.Stdout, "%-8s %s %s\n", state, r.Key.ID, r.Key)
					}
					return err
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print type, livemode and redacted form of a key without storing it",
				ArgsUsage: "<secret>",
				Action: func(_ context.Context, c *cli.Command) error {
					secret := c.Args().First()
					keyType, livemode, err := domain.ParseAPIKeyDetails(secret)
					if err != nil {
						return err
					}
					key := domain.APIKey{Type: keyType, Secret: secret, Livemode: livemode}
					fmt.Fprintf(os.Stdout, "type=%s livemode=%t secret=%s dashboard=%s\n",
						key.Type, key.Livemode, key.SecretRedacted(), key.DashboardURL())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("stripekeys failed")
	}
}

func dbPathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db-path",
		Value:   "./stripekeys.sqlite",
		Sources: cli.EnvVars("STRIPEKEYS_DB_PATH"),
		Usage:   "SQLite file path",
	}
}

func serve(ctx context.Context, log zerolog.Logger, cfg app.Config) error {
	server, closer, err := app.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("close resources")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

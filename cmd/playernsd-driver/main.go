// Command playernsd-driver runs a pkg/driver.Driver against a configured
// playernsd daemon, exercising the library the way cmd/sdo_client and
// cmd/canopen exercise gocanopen.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samsamfire/playernsd/internal/config"
	"github.com/samsamfire/playernsd/pkg/driver"
	"github.com/samsamfire/playernsd/pkg/driver/faketest"
)

func main() {
	var (
		id             string
		host           string
		port           string
		worldFile      string
		model          string
		position2DAddr string
	)

	root := &cobra.Command{
		Use:   "playernsd-driver",
		Short: "Joins a playernsd daemon as a named client and bridges it to a middleware device",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			cfg := driver.Config{
				ID:             id,
				Host:           host,
				Port:           port,
				Logger:         logger,
				Position2DAddr: driver.Address(position2DAddr),
			}

			if worldFile != "" && model != "" {
				origin, err := config.LoadWorldFile(worldFile, model)
				if err != nil {
					return fmt.Errorf("loading world file: %w", err)
				}
				cfg.Origin = &origin
			}

			// faketest.Middleware stands in for the real middleware
			// device-table/pubsub substrate, which is out of scope per
			// spec.md §1/§6; a real deployment wires in its own
			// implementation of driver.Middleware here.
			mw := faketest.New()

			drv, err := driver.New(cfg, mw)
			if err != nil {
				return fmt.Errorf("constructing driver: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("playernsd-driver: starting", "id", id, "host", host, "port", port)
			return drv.Run(ctx)
		},
	}

	flags := root.Flags()
	flags.StringVar(&id, "id", "", "client id to register with (required)")
	flags.StringVar(&host, "host", "localhost", "daemon host")
	flags.StringVar(&port, "port", "9999", "daemon port")
	flags.StringVar(&worldFile, "world-file", "", "stage world file for pose/localization origin lookup")
	flags.StringVar(&model, "model", "", "model section name within --world-file")
	flags.StringVar(&position2DAddr, "position2d-addr", "", "middleware address to subscribe for position2d updates")
	_ = root.MarkFlagRequired("id")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/grovia/internal/config"
	"github.com/example/grovia/internal/grpchealth"
	"github.com/example/grovia/internal/leaf"
	"github.com/example/grovia/internal/logging"
)

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "grovia",
		Short:         "Leaf disease detection backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file read before the environment")

	cmd.AddCommand(
		serveCmd(&envFile),
		validateCmd(&envFile),
		seedCmd(&envFile),
		healthcheckCmd(&envFile),
	)
	return cmd
}

// loadRuntime reads the configuration and builds the logger every command shares.
func loadRuntime(envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*envFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

type fileVerdict struct {
	File string `json:"file"`
	leaf.Verdict
}

func validateCmd(envFile *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "validate <image>...",
		Short: "Run the leaf admission gate on local images and print the verdicts as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*envFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			rejected := validateImages(cmd.OutOrStdout(), leaf.NewGate(cfg.Leaf, logger), args, debug)
			if rejected > 0 {
				return fmt.Errorf("%d of %d images rejected", rejected, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Include green and texture scores")
	return cmd
}

func validateImages(out io.Writer, gate *leaf.Gate, paths []string, debug bool) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	rejected := 0
	for _, path := range paths {
		verdict := gate.Validate(path)
		if !verdict.IsValid {
			rejected++
		}
		if !debug {
			verdict.DebugInfo = nil
		}
		_ = enc.Encode(fileVerdict{File: path, Verdict: verdict})
	}
	return rejected
}

func healthcheckCmd(envFile *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Query the gRPC health service of a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*envFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if addr == "" {
				addr = cfg.GRPCAddr
			}
			status, err := grpchealth.Remote(cmd.Context(), addr, grpchealth.ServiceName, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("%s is %s", addr, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address of the health service (defaults to GRPC_ADDR)")
	return cmd
}

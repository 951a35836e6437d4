package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/cache"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/service"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitSuccess      = 0
	exitUsageError   = 2
	exitRuntimeError = 4
)

type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error { return e.err }

func run(args []string) int {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		if _, ok := err.(runtimeError); ok {
			return exitRuntimeError
		}
		return exitUsageError
	}

	return exitSuccess
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "fraud-api",
		Short:        "Credit card fraud detection API",
		Long:         "fraud-api serves fraud predictions, AI explanations and OCR transaction parsing over HTTP.",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newServeCmd(), newCacheKeyCmd(), newVersionCmd())

	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			svc, err := service.NewService(ctx, configPath)
			if err != nil {
				return runtimeError{fmt.Errorf("creating service: %w", err)}
			}

			if err := svc.Start(); err != nil {
				return runtimeError{err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "path to the YAML configuration")

	return cmd
}

// cache-key prints the key a JSON payload maps to, which helps when
// inspecting a shared redis cache by hand.
func newCacheKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-key <json>",
		Short: "Print the cache key derived from a JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cache.DeriveKeyJSON([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print fraud-api version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fraud-api version %s (%s)\n", version, runtime.Version())
		},
	}
}

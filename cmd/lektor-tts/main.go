package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/polski-lektor/lektor-tts/internal/config"
)

// Version is set at build time.
var Version = "dev"

type flags struct {
	configPath string
	schemaPath string
	httpPort   int
	grpcPort   int
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "lektor-tts",
		Short:         "Speech synthesis service: datasets, simulated training, placeholder TTS",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file (YAML or TOML); defaults are used when it does not exist")
	cmd.Flags().StringVar(&f.schemaPath, "schema", "", "Path to schema file (empty uses the built-in schema)")
	cmd.Flags().IntVar(&f.httpPort, "http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
	cmd.Flags().IntVar(&f.grpcPort, "grpc-port", config.DefaultGRPCPort(), "gRPC port to listen on")

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lektor-tts:", err)
		os.Exit(1)
	}
}

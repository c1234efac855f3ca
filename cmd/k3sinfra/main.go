package main

import (
	"fmt"
	"os"

	"github/chirauki/aws-k3s-infra/config"
	"github/chirauki/aws-k3s-infra/topology"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	stackFile string
	project   string
	logLevel  string
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "k3sinfra",
		Short:         "Inspect the k3s infrastructure topology without running the Pulumi engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.stackFile, "stack-file", "f", "Pulumi.dev.yaml", "Pulumi stack config file")
	rootCmd.PersistentFlags().StringVar(&opts.project, "project", config.DefaultProject, "Pulumi project name owning the config")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level")

	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newGraphCmd(opts))
	rootCmd.AddCommand(newPreflightCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
}

// load reads the stack file and builds its topology.
func (o *rootOptions) load() (*config.EnvironmentConfig, *topology.Graph, error) {
	cfg, err := config.LoadStackFile(o.stackFile, o.project)
	if err != nil {
		return nil, nil, err
	}
	g, err := topology.Build(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, g, nil
}

// Package cmd implements the mosdash command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kahosan/mosdash/internal/client"
	"github.com/kahosan/mosdash/internal/config"
	"github.com/kahosan/mosdash/internal/logging"
)

var (
	cfgFile   string
	outputFmt string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "mosdash",
	Short: "mosdash, an admin console for mosdns",
	Long: `mosdash manages a mosdns deployment.

"mosdash serve" exposes the configuration and rule files, the parsed service
log and start/stop/restart over HTTP. "mosdash console" and the one-shot
commands talk to that backend.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.mosdash.yaml)")
	flags.StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")
	flags.String("url", "", "backend base URL (default: http://localhost:1323)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	cobra.CheckErr(viper.BindPFlag("client.url", flags.Lookup("url")))
	cobra.CheckErr(viper.BindPFlag("log.level", flags.Lookup("log-level")))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".mosdash")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("mosdash")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		cobra.CheckErr(fmt.Errorf("read config %s: %w", cfgFile, err))
	}
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newClient(cfg *config.Config) (*client.Client, error) {
	return client.New(cfg.Client.URL, cfg.Client.Timeout)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

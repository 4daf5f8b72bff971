package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kahosan/mosdash/internal/aggregator"
	"github.com/kahosan/mosdash/internal/config"
	"github.com/kahosan/mosdash/internal/control"
	"github.com/kahosan/mosdash/internal/hub"
	"github.com/kahosan/mosdash/internal/parser"
	"github.com/kahosan/mosdash/internal/server"
	"github.com/kahosan/mosdash/internal/store"
	"github.com/kahosan/mosdash/internal/tailer"
	"github.com/kahosan/mosdash/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend",
	Long: `Serve the mosdns configuration directory over HTTP.

Examples:
  mosdash serve --dir /etc/mosdns
  mosdash serve --dir /etc/mosdns --port 8080 --log-file /var/log/mosdns.log`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringP("dir", "d", ".", "mosdns configuration directory")
	flags.IntP("port", "p", 1323, "listen port")
	flags.String("log-file", "mosdns.log", "mosdns log file, relative to --dir unless absolute")
	flags.Bool("strict-log", true, "fail /log when any line cannot be parsed")
	flags.Bool("stream", true, "tail the log file for /log/stream and /api/stats")

	for key, name := range map[string]string{
		"server.dir":        "dir",
		"server.port":       "port",
		"server.log_file":   "log-file",
		"server.strict_log": "strict-log",
		"server.stream":     "stream",
	} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(name)))
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	st, err := store.New(store.Options{
		Root:          cfg.Server.Dir,
		RuleSubdir:    cfg.Server.RuleDir,
		ConfigPattern: cfg.Server.ConfigPattern,
		RulePattern:   cfg.Server.RulePattern,
	})
	if err != nil {
		return fmt.Errorf("failed to open config directory: %w", err)
	}

	ctl := control.New(control.Options{
		Command: cfg.Server.Systemctl,
		Unit:    cfg.Server.Unit,
		Timeout: cfg.Server.ActionTimeout,
		Rate:    cfg.Server.ActionRate,
		Burst:   cfg.Server.ActionBurst,
	}, control.ExecRunner{}, logger)

	opts := server.Options{
		Port:      cfg.Server.Port,
		LogPath:   logPath(cfg),
		StrictLog: cfg.Server.StrictLog,
		Store:     st,
		Control:   ctl,
		Logger:    logger,
	}

	if cfg.Server.Stream {
		h, agg, err := startStream(ctx, opts.LogPath, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("live log stream disabled")
		} else {
			opts.Hub, opts.Aggregator = h, agg
		}
	}

	logger.Info().
		Str("dir", cfg.Server.Dir).
		Str("log_file", opts.LogPath).
		Str("unit", cfg.Server.Unit).
		Msg("starting backend")
	return server.New(opts).Start(ctx)
}

func logPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Server.LogFile) {
		return cfg.Server.LogFile
	}
	return filepath.Join(cfg.Server.Dir, cfg.Server.LogFile)
}

// startStream wires watcher, tailer, hub and aggregator for one log file.
// Everything stops when ctx is cancelled.
func startStream(ctx context.Context, path string, logger zerolog.Logger) (*hub.Hub, *aggregator.Aggregator, error) {
	w, err := watcher.New([]string{path}, logger)
	if err != nil {
		return nil, nil, err
	}

	t := tailer.New(w, logger)
	h := hub.New(t.Lines(), parser.NewMosdnsParser(), logger)
	entries, _ := h.Subscribe()
	agg := aggregator.New(entries, h.Dropped, func() int { return h.Subscribers() - 1 })

	go w.Start(ctx)
	go t.Start(ctx)
	go h.Start(ctx)
	go agg.Start(ctx)

	return h, agg, nil
}

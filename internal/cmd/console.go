package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kahosan/mosdash/internal/console"
	"github.com/kahosan/mosdash/internal/logview"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive console",
	Long: `Browse and edit configuration and rule files, control the service and
page through its log in a terminal UI.

Keys:
  Ctrl+S save    Ctrl+R reload    F2 start    F3 stop    F4 restart
  F5 refresh log    Ctrl+L toggle log    Tab next field    Ctrl+C quit`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	view := logview.NewView()
	view.LegacyOffset = cfg.Client.LegacyOffset
	if err := view.SetPageSize(cfg.Client.PageSize); err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	// The screen owns the terminal; stderr logging would corrupt it.
	ui := console.New(c, console.Options{
		View:    view,
		Refresh: cfg.Client.Refresh,
		Logger:  zerolog.Nop(),
	})
	return ui.Run(ctx)
}

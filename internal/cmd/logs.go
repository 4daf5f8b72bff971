package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kahosan/mosdash/internal/logview"
	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/output"
)

var (
	logSearch   string
	logPage     int
	logPageSize int
	logFollow   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the parsed mosdns log",
	Long: `Fetch the mosdns log from the backend and print one page of it,
newest first. --follow keeps streaming new entries afterwards.

Examples:
  mosdash logs --search timeout
  mosdash logs --page 2 --page-size 50
  mosdash logs --follow --output json`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	flags := logsCmd.Flags()
	flags.StringVarP(&logSearch, "search", "s", "", "case-insensitive search over message and fields")
	flags.IntVar(&logPage, "page", 1, "page number")
	flags.IntVar(&logPageSize, "page-size", 0, "entries per page: 5, 10, 20 or 50 (default: client.page_size)")
	flags.BoolVarP(&logFollow, "follow", "f", false, "stream new entries after the first page")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	renderer, err := output.New(outputFmt, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	view := logview.NewView()
	view.LegacyOffset = cfg.Client.LegacyOffset
	size := cfg.Client.PageSize
	if logPageSize != 0 {
		size = logPageSize
	}
	if err := view.SetPageSize(size); err != nil {
		return err
	}
	view.SetSearch(logSearch)

	entries, err := c.Logs(cmd.Context())
	if err != nil {
		return err
	}

	p := logview.NewPipeline(view)
	p.SetEntries(entries)
	p.GoTo(logPage)
	if err := renderer.RenderTable(p.Table()); err != nil {
		return err
	}

	if !logFollow {
		return nil
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	err = c.StreamLogs(ctx, func(e model.LogEntry) {
		batch := []model.LogEntry{e}
		if len(logview.Filter(batch, logview.DisplayFields(batch), logSearch)) == 0 {
			return
		}
		if err := renderer.Render(e); err != nil {
			logger.Error().Err(err).Msg("render error")
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream: %w", err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kahosan/mosdash/internal/shell"
)

var filesCmd = &cobra.Command{
	Use:   "files <config|rule>",
	Short: "List configuration or rule files",
	Args:  cobra.ExactArgs(1),
	RunE:  runFiles,
}

var catCmd = &cobra.Command{
	Use:   "cat <config|rule> <file>",
	Short: "Print a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

var saveFrom string

var saveCmd = &cobra.Command{
	Use:   "save <config|rule> <file>",
	Short: "Replace a file with new content",
	Long: `Replace a file on the backend. Content is read from stdin unless
--file is given.

Examples:
  mosdash save config config.yaml -f ./config.yaml
  echo "domain:example.com" | mosdash save rule direct.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVarP(&saveFrom, "file", "f", "", "read content from this file instead of stdin")
	rootCmd.AddCommand(filesCmd, catCmd, saveCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	dir, err := shell.ParseDirType(args[0])
	if err != nil {
		return err
	}
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	names, err := c.ListFiles(cmd.Context(), string(dir))
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	dir, err := shell.ParseDirType(args[0])
	if err != nil {
		return err
	}
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	content, err := c.ReadFile(cmd.Context(), string(dir), args[1])
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), content)
	return err
}

func runSave(cmd *cobra.Command, args []string) error {
	dir, err := shell.ParseDirType(args[0])
	if err != nil {
		return err
	}
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	var content []byte
	if saveFrom != "" {
		content, err = os.ReadFile(saveFrom)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	msg, err := c.SaveFile(cmd.Context(), string(dir), args[1], string(content))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evanofslack/ddns-agent/internal/config"
	"github.com/evanofslack/ddns-agent/internal/history"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the recorded updates of the managed record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.HistoryPath == "" {
				return errors.New("history_path is not set in the config")
			}

			// badger holds a directory lock, so this fails while the agent is running
			journal, err := history.Open(cfg.HistoryPath, metrics.New(false))
			if err != nil {
				return fmt.Errorf("open update history: %w", err)
			}
			defer journal.Close()

			entries, err := journal.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list update history: %w", err)
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
}

func printHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no updates recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRECORD\tNAME\tOLD IP\tNEW IP")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.At.Format(time.DateTime), e.RecordID, e.Name, e.OldIP, e.NewIP)
	}
	return tw.Flush()
}

type setupOptions struct {
	force bool
}

func newSetupCommand(opts *rootOptions) *cobra.Command {
	setupOpts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a config file, prompting for the API token and record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, opts.configPath, setupOpts)
		},
	}
	cmd.Flags().BoolVarP(&setupOpts.force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

func runSetup(cmd *cobra.Command, path string, opts *setupOptions) error {
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("check %s: %w", path, err)
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	cfg := config.Default()

	token, err := promptSecret(cmd.InOrStdin(), in, out, "API token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	cfg.Token = token

	recordID, err := prompt(in, out, "Record id: ")
	if err != nil {
		return fmt.Errorf("read record id: %w", err)
	}
	if cfg.RecordID, err = strconv.ParseUint(recordID, 10, 64); err != nil {
		return fmt.Errorf("record id must be an unsigned integer: %w", err)
	}

	if cfg.APIURL, err = prompt(in, out, "Records API url: "); err != nil {
		return fmt.Errorf("read api url: %w", err)
	}

	interval, err := prompt(in, out, fmt.Sprintf("Update interval in minutes [%d]: ", cfg.UpdateInterval))
	if err != nil {
		return fmt.Errorf("read update interval: %w", err)
	}
	if interval != "" {
		if cfg.UpdateInterval, err = strconv.ParseUint(interval, 10, 64); err != nil {
			return fmt.Errorf("update interval must be an unsigned integer: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "config written to %s\n", path)
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(raw io.Reader, in *bufio.Reader, out io.Writer, label string) (string, error) {
	f, ok := raw.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

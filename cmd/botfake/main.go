package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/internal/scenario"
	"github.com/funnyzak/botfake/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// errScenarioFailed is returned by serve when the scenario report has
// problems; the report itself has already been printed.
var errScenarioFailed = errors.New("scenario failed")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "botfake",
		Short: "Scripted fake Telegram Bot API server for client integration tests",
		Long: `BotFake serves a scripted sequence of Bot API exchanges. Every request the
client sends is checked against the next step of the scenario and answered
with a canned response. When the server stops it reports every unmet
expectation and every mismatch it saw.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(), newScenariosCmd(), newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a scenario until interrupted, then print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.StringP("scenario", "s", "", "Scenario to serve")
	flags.String("scenario-file", "", "YAML file with extra scenarios")
	flags.StringP("host", "H", "", "Listen host")
	flags.IntP("port", "p", 0, "Listen port (0 picks a free port)")
	flags.Bool("inspect", false, "Enable inspection routes and the live feed")
	flags.String("inspect-path", "", "Inspection path prefix")
	flags.String("journal-driver", "", "Exchange journal driver (memory, sqlite, none)")
	flags.String("journal-path", "", "SQLite journal path")
	flags.StringP("output", "o", "", "Output mode (console, json)")
	flags.Bool("silence", false, "Do not print exchanges")
	flags.StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic, disabled)")
	flags.Bool("log-file-enable", false, "Enable file logging")
	flags.String("log-file-path", "", "Log file path")

	bindFlags(cmd, v)
	return cmd
}

// bindFlags maps serve flags onto config keys. Only flags set on the
// command line take part, so config file and BOTFAKE_* values survive
// unset flags.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	bindings := map[string]string{
		"scenario":        "server.scenario",
		"scenario-file":   "server.scenario_file",
		"host":            "server.host",
		"port":            "server.port",
		"inspect":         "live.enable",
		"inspect-path":    "live.path",
		"journal-driver":  "journal.driver",
		"journal-path":    "journal.path",
		"output":          "output.mode",
		"silence":         "output.silence",
		"log-level":       "log.level",
		"log-file-enable": "log.file_logging.enable",
		"log-file-path":   "log.file_logging.path",
	}
	for flag, key := range bindings {
		v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(configPath, v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.TrimSpace(cfg.Server.Scenario) == "" {
		return errors.New("no scenario selected; pass --scenario or set server.scenario (see `botfake scenarios`)")
	}

	log := logger.NewLogger(&cfg.Log, cfg.Output.Mode)

	srv, err := server.New(cfg, log, nil)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	if cfg.Output.Mode == "console" {
		printStartupBanner(cmd.OutOrStdout(), cfg, srv)
	}
	log.Info("BotFake starting",
		"version", version,
		"scenario", cfg.Server.Scenario,
		"url", srv.URL(),
		"journal", cfg.Journal.Driver,
		"live", cfg.Live.Enable,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := srv.Stop(); err != nil {
		log.Warn("Error while stopping server", "error", err)
	}
	report := srv.Report()
	if err := srv.PrintReport(); err != nil {
		log.Error("Failed to print report", "error", err)
	}
	if !report.Passed() {
		return errScenarioFailed
	}
	return nil
}

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List scenarios and their expectations",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := scenario.NewRegistry()
			if path, _ := cmd.Flags().GetString("scenario-file"); path != "" {
				if err := reg.LoadFile(path); err != nil {
					return err
				}
			}
			return listScenarios(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().String("scenario-file", "", "YAML file with extra scenarios")
	return cmd
}

func listScenarios(w io.Writer, reg *scenario.Registry) error {
	name := color.New(color.FgCyan, color.Bold)
	for _, n := range reg.Names() {
		expectations, err := reg.Expectations(n)
		if err != nil {
			return err
		}
		name.Fprintln(w, n)
		for i, e := range expectations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, e)
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "BotFake version %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", buildDate)
		},
	}
}

func printStartupBanner(w io.Writer, cfg *config.Config, srv *server.Server) {
	titleLine := fmt.Sprintf("BotFake v%s", version)
	subtitleLine := "Scripted Bot API Server"

	var lines []string
	lines = append(lines, fmt.Sprintf("🚀 Listening on:   %s", srv.URL()))
	lines = append(lines, fmt.Sprintf("🎬 Scenario:       %s", cfg.Server.Scenario))
	for i, e := range srv.Report().Expectations {
		lines = append(lines, fmt.Sprintf("   └─ %d. %s", i+1, e))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("📊 Log Level:      %s", cfg.Log.Level))
	journalLine := fmt.Sprintf("🗂️ Journal:        %s", cfg.Journal.Driver)
	if cfg.Journal.Driver == config.JournalSQLite {
		journalLine += " (" + cfg.Journal.Path + ")"
	}
	lines = append(lines, journalLine)
	if cfg.Live.Enable {
		lines = append(lines, fmt.Sprintf("🖥️ Inspect:        %s%s/status", strings.TrimSuffix(srv.URL(), "/"), cfg.Live.Path))
	} else {
		lines = append(lines, "🖥️ Inspect:        Disabled")
	}
	lines = append(lines, "", "(Press Ctrl+C to stop and check expectations)")

	maxLength := max(runewidth.StringWidth(titleLine), runewidth.StringWidth(subtitleLine))
	for _, line := range lines {
		if width := runewidth.StringWidth(line); width > maxLength {
			maxLength = width
		}
	}
	boxWidth := maxLength + 4
	if boxWidth < 50 {
		boxWidth = 50
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	printBoxContent(w, titleLine, boxWidth, true)
	printBoxContent(w, subtitleLine, boxWidth, true)
	fmt.Fprintf(w, "├%s┤\n", strings.Repeat("─", boxWidth-2))
	for _, line := range lines {
		printBoxContent(w, line, boxWidth, false)
	}
	fmt.Fprintf(w, "└%s┘\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintln(w)
}

func printBoxContent(w io.Writer, content string, boxWidth int, center bool) {
	padding := boxWidth - 2 - runewidth.StringWidth(content)
	if padding < 0 {
		padding = 0
	}

	var leftPad, rightPad string
	if center {
		leftPad = strings.Repeat(" ", padding/2)
		rightPad = strings.Repeat(" ", padding-padding/2)
	} else {
		leftPad = "  "
		rightPad = strings.Repeat(" ", max(padding-2, 0))
	}
	fmt.Fprintf(w, "│%s%s%s│\n", leftPad, content, rightPad)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errScenarioFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

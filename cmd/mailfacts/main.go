package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hanqizheng/mailfacts/internal/ai"
	"github.com/hanqizheng/mailfacts/internal/config"
	"github.com/hanqizheng/mailfacts/internal/export"
	"github.com/hanqizheng/mailfacts/internal/inbox"
	"github.com/hanqizheng/mailfacts/internal/parse"
	"github.com/hanqizheng/mailfacts/internal/registry"
	"github.com/hanqizheng/mailfacts/internal/web"
)

var cfgFile string

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailfacts",
		Short: "mailfacts - Extract business facts from partner emails",
		Long: `mailfacts parses raw email files and extracts which project each message
concerns, who the external counterparty is, and what stage the
negotiation has reached, with a confidence score per message.

Deterministic matching (exact, alias, fuzzy) runs first; an optional
AI enrichment step fills the gaps when a chat endpoint is configured.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, then $HOME/.mailfacts/config.yaml)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listProjectsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseCmd() *cobra.Command {
	var jsonOut, csvOut string
	var noAI bool

	cmd := &cobra.Command{
		Use:   "parse <file-or-dir>...",
		Short: "Parse email files and extract project/partner/stage facts",
		Long: `Parse one batch of .eml files. Arguments may be files or directories;
directories are scanned (non-recursively) for .eml files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(args, jsonOut, csvOut, noAI)
		},
	}

	cmd.Flags().StringVar(&jsonOut, "json", "", "write the full batch result as JSON to this file")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write per-message results as CSV to this file")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip AI enrichment even if enabled in config")

	return cmd
}

func inboxCmd() *cobra.Command {
	var jsonOut, csvOut string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Fetch recent messages over IMAP and parse them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInbox(jsonOut, csvOut)
		},
	}

	cmd.Flags().StringVar(&jsonOut, "json", "", "write the full batch result as JSON to this file")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write per-message results as CSV to this file")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local parsing API",
		Long: `Start a local HTTP server. POST .eml files to /api/parse to run a batch;
GET /api/projects and /api/stages expose the configured registries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")

	return cmd
}

func listProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-projects",
		Short: "List the configured project registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListProjects()
		},
	}
}

// loadEnvironment loads config plus both registries and assembles the
// runtime options for a pipeline.
func loadEnvironment() (*config.Config, *registry.ProjectDatabase, *registry.StageDatabase, parse.Options, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, nil, parse.Options{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, parse.Options{}, fmt.Errorf("invalid config: %w", err)
	}

	projects, err := registry.LoadProjects(cfg.Registry.ProjectsFile)
	if err != nil {
		return nil, nil, nil, parse.Options{}, err
	}
	stages, err := registry.LoadStages(cfg.Registry.StagesFile)
	if err != nil {
		return nil, nil, nil, parse.Options{}, err
	}

	opts := parse.Options{
		EnableAI:              cfg.Parsing.EnableAI,
		FuzzyMatchThreshold:   cfg.Parsing.FuzzyMatchThreshold,
		AIConfidenceThreshold: cfg.Parsing.AIConfidenceThreshold,
		MaxContentLength:      cfg.Parsing.MaxContentLength,
		PlatformDomains:       cfg.PlatformDomains,
		Projects:              projects.Active(),
		Stages:                stages.Stages,
	}
	return cfg, projects, stages, opts, nil
}

func chatClientFor(cfg *config.Config, opts parse.Options) parse.ChatClient {
	if !opts.EnableAI {
		return nil
	}
	return ai.NewClient(cfg.AI)
}

func collectMessages(args []string) ([]parse.SourceMessage, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".eml") {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	sort.Strings(paths)

	var msgs []parse.SourceMessage
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		msgs = append(msgs, parse.SourceMessage{
			Filename:   filepath.Base(path),
			RawContent: raw,
			SizeBytes:  int64(len(raw)),
		})
	}
	return msgs, nil
}

func runParse(args []string, jsonOut, csvOut string, noAI bool) error {
	cfg, _, _, opts, err := loadEnvironment()
	if err != nil {
		return err
	}
	if noAI {
		opts.EnableAI = false
	}

	msgs, err := collectMessages(args)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no .eml files found")
	}

	pipeline := parse.NewPipeline(opts, chatClientFor(cfg, opts))
	batch := pipeline.Run(signalContext(), msgs)

	printSummary(batch)
	return writeOutputs(batch, jsonOut, csvOut)
}

func runInbox(jsonOut, csvOut string) error {
	cfg, _, _, opts, err := loadEnvironment()
	if err != nil {
		return err
	}
	if err := cfg.ValidateInbox(); err != nil {
		return err
	}

	ctx := signalContext()
	monitor := inbox.NewMonitor(cfg.Inbox)
	if err := monitor.Connect(ctx); err != nil {
		return err
	}
	defer monitor.Disconnect()

	msgs, err := monitor.FetchRecentMessages(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("No recent messages found.")
		return nil
	}

	pipeline := parse.NewPipeline(opts, chatClientFor(cfg, opts))
	batch := pipeline.Run(ctx, msgs)

	printSummary(batch)
	return writeOutputs(batch, jsonOut, csvOut)
}

func runServe(port int) error {
	cfg, projects, stages, opts, err := loadEnvironment()
	if err != nil {
		return err
	}

	server := web.NewServer(port, opts, chatClientFor(cfg, opts), projects, stages)
	return server.Start(signalContext())
}

func runListProjects() error {
	_, projects, _, _, err := loadEnvironment()
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-30s %-10s %s\n", "ID", "NAME", "STATUS", "ALIASES")
	for _, p := range projects.Projects {
		status := p.Status
		if status == "" {
			status = "active"
		}
		fmt.Printf("%-20s %-30s %-10s %s\n", p.ID, p.Name, status, strings.Join(p.Aliases, ", "))
	}
	fmt.Printf("\n%d projects configured\n", len(projects.Projects))
	return nil
}

func printSummary(batch parse.BatchResult) {
	for _, r := range batch.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("  %-40s %-8s project=%q partner=%q stage=%q confidence=%.2f\n",
			r.Filename, status, r.ProjectName, r.PartnerEmail, r.CommunicationStage, r.Confidence)
	}

	s := batch.Summary
	fmt.Printf("\nProcessed %d messages in %dms: %d successful, %d failed, average confidence %.2f\n",
		s.Total, s.ProcessingTimeMs, s.Successful, s.Failed, s.AverageConfidence)
	for _, e := range batch.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func writeOutputs(batch parse.BatchResult, jsonOut, csvOut string) error {
	if jsonOut != "" {
		data, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize results: %w", err)
		}
		if err := os.WriteFile(jsonOut, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonOut, err)
		}
		fmt.Printf("Wrote JSON results to %s\n", jsonOut)
	}

	if csvOut != "" {
		f, err := os.Create(csvOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", csvOut, err)
		}
		defer f.Close()
		if err := export.WriteCSV(f, batch.Results); err != nil {
			return fmt.Errorf("failed to write %s: %w", csvOut, err)
		}
		fmt.Printf("Wrote CSV results to %s\n", csvOut)
	}

	return nil
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}

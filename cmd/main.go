package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/pkg/config"
	"github.com/xhad/bizintel/pkg/jobs"
	"github.com/xhad/bizintel/pkg/store"
	"github.com/xhad/bizintel/server"
)

var version = "dev"

var (
	configPath string
	addr       string

	firstName string
	lastName  string
	website   string
	profile   string
)

var rootCmd = &cobra.Command{
	Use:           "bizintel",
	Short:         "Collect business intelligence about a company website and LinkedIn profile",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE:  runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis in the foreground and store the result",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	analyzeCmd.Flags().StringVar(&firstName, "first", "", "Requester first name")
	analyzeCmd.Flags().StringVar(&lastName, "last", "", "Requester last name")
	analyzeCmd.Flags().StringVar(&website, "website", "", "Company website URL")
	analyzeCmd.Flags().StringVar(&profile, "linkedin", "", "LinkedIn profile URL")
	analyzeCmd.MarkFlagRequired("first")
	analyzeCmd.MarkFlagRequired("last")

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, nil, eris.Errorf("invalid configuration (%d errors)", len(errs))
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	dispatcher := jobs.NewDispatcher(a.pipeline, jobs.DispatcherConfig{
		Workers:    cfg.Server.JobWorkers,
		QueueSize:  cfg.Server.QueueSize,
		MaxRetries: cfg.Server.JobRetries,
		Logger:     logger.Named("jobs"),
		Metrics:    a.metrics,
	})
	dispatcher.Start(ctx)

	srv := server.New(server.Config{
		Addr:       cfg.Server.Addr,
		Dispatcher: dispatcher,
		Store:      a.store,
		Providers:  a.providers,
		Gatherer:   a.registry,
		Version:    version,
		Logger:     logger.Named("server"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("job drain incomplete", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	reg := models.Registration{
		FirstName:      firstName,
		LastName:       lastName,
		CompanyWebsite: website,
		LinkedIn:       profile,
	}
	if err := reg.Validate(); err != nil {
		return eris.Wrap(err, "invalid registration")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner("Analyzing " + describe(reg) + "...")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()

	out, err := a.pipeline.Run(ctx, reg)
	close(done)
	spinner.Finish()
	fmt.Print("\n")
	if err != nil {
		return err
	}

	printSummary(out)
	if fs, ok := a.store.(*store.FileStore); ok {
		color.Cyan("Saved to %s", fs.Path(out.RequestID))
	}
	color.Cyan("Request ID: %s", out.RequestID)
	return nil
}

func describe(reg models.Registration) string {
	if reg.CompanyWebsite != "" {
		return reg.CompanyWebsite
	}
	return reg.LinkedIn
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func printSummary(out *models.AnalysisOutput) {
	color.Blue("\nAnalysis %s", out.RequestID)

	if status, _ := out.LinkedInAnalysis["status"].(string); status != "" {
		switch status {
		case "success":
			color.Green("✓ LinkedIn profile analyzed")
		case "not_implemented":
			fmt.Println("- LinkedIn: no profile provided")
		default:
			color.Yellow("✗ LinkedIn: %v", out.LinkedInAnalysis["message"])
		}
	}

	wa := out.WebsiteAnalysis
	if wa == nil {
		fmt.Println("- Website: no website provided")
		return
	}

	okCount, failed := wa.ScrapedContent.Counts()
	color.Green("✓ Discovered %d URLs, selected %d", len(wa.DiscoveredURLs), len(wa.FilteredURLs))
	for _, u := range wa.FilteredURLs {
		fmt.Printf("  %3d  %-10s %s\n", u.Score, u.Category, u.URL)
	}

	if failed == 0 {
		color.Green("✓ Extracted %d pages", okCount)
		return
	}
	color.Yellow("Extracted %d pages, %d failed", okCount, failed)
	urls := make([]string, 0, failed)
	for u, p := range wa.ScrapedContent {
		if !p.OK {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	for _, u := range urls {
		color.Red("  %s: %s", u, wa.ScrapedContent[u].Error)
	}
}

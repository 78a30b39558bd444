package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kapajira/internal/common"
	"kapajira/internal/interfaces"
	"kapajira/internal/models"
	"kapajira/internal/services"
)

const appName = "kapajira"

func main() {
	var (
		configPath     = flag.String("config", "", "Path to configuration file")
		findingsPath   = flag.String("findings", "-", "Path to findings JSON file, '-' for stdin")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, common.FullVersion())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Reporter.Environment = parseMode(*mode)

	if *validateConfig {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	logger.Info().
		Str("version", common.FullVersion()).
		Str("environment", cfg.Reporter.Environment).
		Str("config_path", *configPath).
		Msg("Starting kapajira")

	if !*quiet {
		common.PrintBanner(cfg, *findingsPath, common.GetLogFilePath())
	}

	findings, err := models.LoadFindings(*findingsPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load findings")
		common.PrintError(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter, err := services.Connect(ctx, &cfg.Jira, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Jira")
		common.PrintError(err.Error())
		os.Exit(1)
	}

	issues := make([]interfaces.Issue, 0, len(findings))
	for _, issue := range models.IssuesFromFindings(findings) {
		issues = append(issues, issue)
	}

	summary, err := reporter.ReportAll(ctx, issues)
	for _, ticket := range summary.Tickets {
		common.PrintSuccess(fmt.Sprintf("%s %s", ticket.Key, ticket.Summary))
	}
	if err != nil {
		logger.Error().Err(err).Msg("Reporting aborted")
		common.PrintError(err.Error())
		os.Exit(1)
	}

	logger.Info().
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Msg("Reporting complete")
	common.PrintInfo(fmt.Sprintf("%d created, %d updated", summary.Created, summary.Updated))
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s %s - report detected issues to Jira\n\n", appName, common.FullVersion())
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", os.Args[0])
	fmt.Println("Flags:")
	fmt.Println("  -config string      Configuration file path")
	fmt.Println("  -findings string    Findings JSON file, '-' for stdin (default \"-\")")
	fmt.Println("  -mode string        Environment mode: 'dev', 'development', 'prod', or 'production' (default \"dev\")")
	fmt.Println("  -quiet              Suppress banner output")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show help message")
	fmt.Println("  -validate           Validate configuration file and exit")
	fmt.Println("\nEnvironment:")
	fmt.Println("  JIRA_URL, JIRA_USER, JIRA_PASSWORD, JIRA_PROJECTS, LOG_LEVEL, LOG_OUTPUT")
	fmt.Println("\nExamples:")
	fmt.Printf("  %s -findings scan.json\n", os.Args[0])
	fmt.Printf("  scanner --json | %s -quiet\n", os.Args[0])
}

package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner
func PrintBanner(cfg *Config, findingsPath, logFile string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText("KAPAJIRA")
	b.PrintCenteredText("Detected Issue Reporter for Jira")
	b.PrintSeparatorLine()

	b.PrintKeyValue("Version", FullVersion(), 15)
	b.PrintKeyValue("Environment", cfg.Reporter.Environment, 15)
	b.PrintKeyValue("Jira", cfg.Jira.URL, 15)
	b.PrintKeyValue("Projects", strings.Join(cfg.Jira.Projects, ", "), 15)
	b.PrintBottomLine()

	fmt.Printf("\n")

	fmt.Printf("📋 Input:\n")
	if findingsPath == "-" {
		fmt.Printf("   • Findings: stdin\n")
	} else {
		fmt.Printf("   • Findings: %s\n", findingsPath)
	}

	if logFile != "" {
		fmt.Printf("   • Log File: %s\n", logFile)
	}
	fmt.Printf("\n")
}

// PrintColorizedMessage prints a message with specified color
func PrintColorizedMessage(color, message string) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green
func PrintSuccess(message string) {
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message))
}

// PrintError prints an error message in red
func PrintError(message string) {
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message))
}

// PrintInfo prints an info message in cyan
func PrintInfo(message string) {
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("ℹ %s", message))
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "server":
		return runServerNoun(args)
	case "worker":
		return runWorkerNoun(args)
	case "job":
		return runJobNoun(args)
	case "config":
		return runConfigNoun(args)

	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

// --- NOUN DISPATCHERS ---

func runServerNoun(args []string) int {
	if len(args) < 1 {
		printServerNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printServerNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printServerStartHelp()
			return 0
		}
		return runServerStart(actionArgs)
	case "help":
		printServerNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown server action: %s\n", action)
		return 1
	}
}

func runWorkerNoun(args []string) int {
	if len(args) < 1 {
		printWorkerNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printWorkerNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printWorkerStartHelp()
			return 0
		}
		return runWorkerStart(actionArgs)
	case "help":
		printWorkerNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown worker action: %s\n", action)
		return 1
	}
}

func runJobNoun(args []string) int {
	if len(args) < 1 {
		printJobNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJobNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "submit":
		if hasHelpFlag(actionArgs) {
			printJobSubmitHelp()
			return 0
		}
		return runJobSubmit(actionArgs)
	case "list":
		if hasHelpFlag(actionArgs) {
			printJobListHelp()
			return 0
		}
		return runJobList(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			printJobGetHelp()
			return 0
		}
		return runJobGet(actionArgs)
	case "cancel":
		if hasHelpFlag(actionArgs) {
			printJobCancelHelp()
			return 0
		}
		return runJobCancel(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printJobWatchHelp()
			return 0
		}
		return runJobWatch(actionArgs)
	case "help":
		printJobNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown job action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: toolfleet version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("toolfleet %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- HELP ---

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`toolfleet - Async job orchestration for operations toolkits

Usage:
  toolfleet <noun> <action> [flags]

Core Resources (Nouns):
  server    Request server lifecycle
  worker    Worker fleet lifecycle
  job       Job submission and inspection
  config    System configuration and integrity

Server Commands:
  server start      Start the request server (HTTP API) in foreground

Worker Commands:
  worker start      Start a worker consuming the task queue in foreground

Job Commands:
  job submit        Submit a job to the fleet
  job list          List jobs, optionally filtered
  job get <id>      Show one job record
  job cancel <id>   Request cancellation of a job
  job watch         Real-time job monitoring TUI

Config Commands:
  config lock       Authorize current state (update integrity hashes)
  config check      Validate syntax and integrity

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'toolfleet <noun> help' for resource-specific flags.
`)
}

func printServerNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: toolfleet server <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printWorkerNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: toolfleet worker <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printJobNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: toolfleet job <action> [flags]")
	fmt.Fprintln(w, "Actions: submit, list, get, cancel, watch")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: toolfleet config <action> [flags]")
	fmt.Fprintln(w, "Actions: lock, check")
}

func printServerStartHelp() {
	fmt.Println("Usage: toolfleet server start [--config PATH]")
	fmt.Println("Start the request server (HTTP API) in the foreground.")
}

func printWorkerStartHelp() {
	fmt.Println("Usage: toolfleet worker start [--config PATH] [--queue NAME]")
	fmt.Println("Start a worker consuming the task queue in the foreground.")
	fmt.Println("")
	fmt.Println("Queue resolution order: --queue, TOOLFLEET_QUEUE, broker.queue in config,")
	fmt.Println("then the broker's default queue.")
}

func printJobSubmitHelp() {
	fmt.Println("Usage: toolfleet job submit --toolkit NAME --operation NAME [--module NAME] [--payload JSON] [flags]")
	fmt.Println("Submit a job via the request server API.")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Request server URL (default: http://localhost:8080)")
	fmt.Println("  --api-key KEY    API Bearer Token (or TOOLFLEET_API_KEY env var)")
	fmt.Println("  --json           Output the created job record as JSON")
}

func printJobListHelp() {
	fmt.Println("Usage: toolfleet job list [--toolkit NAME] [--module NAME] [--status NAME] [--limit N] [--offset N] [flags]")
	fmt.Println("List jobs via the request server API, newest first.")
}

func printJobGetHelp() {
	fmt.Println("Usage: toolfleet job get <job_id> [flags]")
	fmt.Println("Show one job record, including its progress log.")
}

func printJobCancelHelp() {
	fmt.Println("Usage: toolfleet job cancel <job_id> [flags]")
	fmt.Println("Request cancellation. Running handlers stop at their next status poll.")
}

func printJobWatchHelp() {
	fmt.Println("Usage: toolfleet job watch [flags]")
	fmt.Println()
	fmt.Println("Real-time job monitoring TUI.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Request server URL (default: http://localhost:8080)")
	fmt.Println("  --api-key KEY    API Bearer Token (or TOOLFLEET_API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Navigate jobs")
	fmt.Println("  c                Cancel selected job")
	fmt.Println("  r                Refresh")
}

func printConfigLockHelp() {
	fmt.Println("Usage: toolfleet config lock [--config PATH]")
	fmt.Println("Authorize current configuration state by regenerating integrity hashes.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: toolfleet config check [--config PATH]")
	fmt.Println("Validate configuration syntax and integrity.")
}

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toolfleet/toolfleet/internal/config"
)

// resolveConfigDir turns a --config value (file, directory, or empty for
// discovery) into the directory holding config.yaml.
func resolveConfigDir(configPath string) (string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfig()
		if err != nil {
			return "", err
		}
		configPath = discovered
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return "", fmt.Errorf("config not found: %s", configPath)
	}
	if info.IsDir() {
		return configPath, nil
	}
	return filepath.Dir(configPath), nil
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	dir, err := resolveConfigDir(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Validate before locking; a lock must never bless a broken config.
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		if _, hashErr := config.LoadChecksums(dir); hashErr == nil {
			// A stale manifest makes Load fail on the hash check even
			// when the YAML itself is fine; that is exactly what lock
			// is for, so only surface non-integrity failures.
			if !isIntegrityError(err) {
				fmt.Fprintf(os.Stderr, "Refusing to lock invalid config: %v\n", err)
				return 1
			}
		} else {
			fmt.Fprintf(os.Stderr, "Refusing to lock invalid config: %v\n", err)
			return 1
		}
	}

	if err := config.GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}

	fmt.Printf("Configuration locked: %s\n", filepath.Join(dir, ".checksums"))
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	dir, err := resolveConfigDir(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}

	if manifest, err := config.LoadChecksums(dir); err == nil {
		if err := config.VerifyFiles(dir, manifest, []string{"config.yaml"}); err != nil {
			fmt.Fprintf(os.Stderr, "Integrity check FAILED: %v\n", err)
			return 1
		}
		fmt.Println("Integrity check passed.")
	} else {
		fmt.Println("No .checksums present; integrity checking is not enabled.")
	}

	fmt.Println("Configuration check PASSED.")
	return 0
}

func isIntegrityError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "config verification failed") || strings.Contains(msg, "has no hash in checksums")
}

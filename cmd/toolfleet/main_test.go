package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func TestRunCLINoArgs(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runCLI(nil)
	})
	if code != 1 {
		t.Fatalf("runCLI(nil) code = %d, want 1", code)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Fatalf("stderr missing unknown-command message: %s", stderr)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	for _, noun := range []string{"server", "worker", "job", "config"} {
		if !strings.Contains(stdout, noun) {
			t.Fatalf("usage missing noun %q: %s", noun, stdout)
		}
	}
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-08-25T10:00:00Z")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, stdout)
	}
	if info.Version != "1.2.3" {
		t.Fatalf("version = %q, want 1.2.3", info.Version)
	}
	if info.Commit != "abcdef123456" {
		t.Fatalf("commit = %q, want abcdef123456 (12 chars)", info.Commit)
	}
	if info.BuildTime != "2026-08-25T10:00:00Z" {
		t.Fatalf("build_time = %q", info.BuildTime)
	}
}

func TestRunVersionRejectsExtraArgs(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"extra"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestConfigLockAndCheck(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("service:\n  name: locked\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", dir})
	})
	if code != 0 {
		t.Fatalf("config lock code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration locked") {
		t.Fatalf("stdout missing lock confirmation: %s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, ".checksums")); err != nil {
		t.Fatalf(".checksums not written: %v", err)
	}

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", dir})
	})
	if code != 0 {
		t.Fatalf("config check code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration check PASSED") {
		t.Fatalf("stdout missing pass summary: %s", stdout)
	}
	if !strings.Contains(stdout, "Integrity check passed") {
		t.Fatalf("stdout missing integrity summary: %s", stdout)
	}
}

func TestConfigCheckDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("service:\n  name: locked\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", dir})
	})
	if code != 0 {
		t.Fatal("config lock failed")
	}

	if err := os.WriteFile(configFile, []byte("service:\n  name: edited\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", dir})
	})
	if code != 1 {
		t.Fatalf("config check code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "FAILED") {
		t.Fatalf("stderr missing failure: %s", stderr)
	}
}

func TestConfigLockRelocksEditedConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("service:\n  name: first\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code, _, _ := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", dir})
	}); code != 0 {
		t.Fatal("initial lock failed")
	}

	// Intentional edit; lock must accept and re-hash.
	if err := os.WriteFile(configFile, []byte("service:\n  name: second\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", dir})
	}); code != 0 {
		t.Fatalf("re-lock failed: %s", stderr)
	}

	if code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", dir})
	}); code != 0 {
		t.Fatalf("check after re-lock failed: %s", stderr)
	}
}

func TestConfigLockRefusesInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configFile, []byte("store:\n  backend: etcd\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", dir})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Refusing to lock") {
		t.Fatalf("stderr missing refusal: %s", stderr)
	}
}

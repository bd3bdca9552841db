// Package main provides tests for the aedesmap CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geovector-labs/aedesmap/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	err := cmd.Execute()
	if err != nil {
		t.Errorf("version command error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "aedesmap") {
		t.Errorf("version output should contain 'aedesmap', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	expectedCommands := []string{"init", "ingest", "scene", "occurrence", "area", "calibrate", "finalize", "validate", "render", "run", "status", "doctor"}
	for _, expected := range expectedCommands {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestInitCommand(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "project")

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("init command error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "aedesmap.yaml")); err != nil {
		t.Errorf("init should create aedesmap.yaml: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "workspace")); err != nil {
		t.Errorf("init should create the workspace directory: %v", err)
	}
}

func TestInitCommandRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	first := cli.NewRootCmd()
	first.SetArgs([]string{"init", dir})
	if err := first.Execute(); err != nil {
		t.Fatalf("first init error = %v", err)
	}

	second := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	second.SetOut(buf)
	second.SetErr(buf)
	second.SetArgs([]string{"init", dir})

	err := second.Execute()
	if err == nil {
		t.Error("second init without --force should return an error")
	}

	third := cli.NewRootCmd()
	third.SetArgs([]string{"init", dir, "--force"})
	if err := third.Execute(); err != nil {
		t.Errorf("init --force error = %v", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	shells := []string{"bash", "zsh", "fish", "powershell"}

	for _, shell := range shells {
		t.Run(shell, func(t *testing.T) {
			cmd := cli.NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"completion", shell})

			err := cmd.Execute()
			if err != nil {
				t.Errorf("completion %s command error = %v", shell, err)
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"unknown-command"})

	err := cmd.Execute()
	if err == nil {
		t.Error("unknown command should return an error")
	}
}

func TestStatusCommandWithoutConfig(t *testing.T) {
	tmpDir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to enter temp directory: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status"})

	err = cmd.Execute()
	if err == nil {
		t.Error("status without a project configuration should return an error")
	}
}

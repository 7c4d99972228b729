// Package main provides tests for the lineforge CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lineforge/lineforge/internal/cli"
	"github.com/lineforge/lineforge/internal/cli/config"
)

func newTestCmd(args ...string) (*bytes.Buffer, error) {
	config.ResetConfig()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	buf, err := newTestCmd("version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "lineforge") {
		t.Errorf("version output should contain 'lineforge', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	buf, err := newTestCmd("--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"sync", "cleanup", "delete", "graph", "runs"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestSyncMissingManifest(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := newTestCmd(
		"sync", "--dry-run",
		"--manifest", tmpDir+"/does-not-exist.json",
	)
	if err == nil {
		t.Error("sync with a missing manifest should return an error")
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := newTestCmd("unknown-command")
	if err == nil {
		t.Error("unknown command should return an error")
	}
}

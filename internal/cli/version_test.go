package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd_Output(t *testing.T) {
	app := New()
	app.SetVersion("1.2.3", "abc1234", "2024-01-15T10:30:00Z")

	cmd := NewVersionCmd(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "1.2.3") {
		t.Error("Output should contain version '1.2.3'")
	}

	if !strings.Contains(output, "abc1234") {
		t.Error("Output should contain commit 'abc1234'")
	}

	if !strings.Contains(output, "2024-01-15T10:30:00Z") {
		t.Error("Output should contain date '2024-01-15T10:30:00Z'")
	}
}

func TestVersionCmd_Format(t *testing.T) {
	app := New()
	app.SetVersion("1.2.3", "abc1234", "2024-01-15T10:30:00Z")

	cmd := NewVersionCmd(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	if len(lines) != 3 {
		t.Errorf("Expected 3 lines of output, got %d", len(lines))
	}

	if !strings.HasPrefix(lines[0], "mcpbr version ") {
		t.Errorf("First line should start with 'mcpbr version ', got: %s", lines[0])
	}

	if !strings.HasPrefix(lines[1], "commit: ") {
		t.Errorf("Second line should start with 'commit: ', got: %s", lines[1])
	}

	if !strings.HasPrefix(lines[2], "built: ") {
		t.Errorf("Third line should start with 'built: ', got: %s", lines[2])
	}
}

func TestVersionCmd_DefaultValues(t *testing.T) {
	app := New()
	// Don't call SetVersion - use defaults

	cmd := NewVersionCmd(app)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "dev") {
		t.Error("Output should contain default version 'dev'")
	}

	// Both commit and date default to "unknown"
	unknownCount := strings.Count(output, "unknown")
	if unknownCount != 2 {
		t.Errorf("Expected 2 occurrences of 'unknown', got %d", unknownCount)
	}
}

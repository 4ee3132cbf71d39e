package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileActions(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Action
	}{
		{
			name:     "no_markers",
			text:     "Just a normal explanation, no blocks here.",
			expected: nil,
		},
		{
			name: "single_block",
			text: "Here you go:\n>>> START_FILE: src/app.js\nconsole.log('hi');\n>>> END_FILE\nDone.",
			expected: []Action{
				{Kind: ActionWriteFile, Path: "src/app.js", Content: "console.log('hi');"},
			},
		},
		{
			name: "multiple_blocks_in_order",
			text: ">>> START_FILE: a.txt\nAAA\n>>> END_FILE\nand\n>>> START_FILE: b.txt\nBBB\n>>> END_FILE",
			expected: []Action{
				{Kind: ActionWriteFile, Path: "a.txt", Content: "AAA"},
				{Kind: ActionWriteFile, Path: "b.txt", Content: "BBB"},
			},
		},
		{
			name:     "unterminated_block_is_ignored",
			text:     ">>> START_FILE: a.txt\nno end marker here",
			expected: nil,
		},
		{
			name: "path_whitespace_trimmed",
			text: ">>> START_FILE:   src/x.go  \npackage x\n>>> END_FILE",
			expected: []Action{
				{Kind: ActionWriteFile, Path: "src/x.go", Content: "package x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := ParseFileActions(tt.text)
			require.Len(t, actions, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want.Path, actions[i].Path)
				assert.Equal(t, want.Content, actions[i].Content)
				assert.Equal(t, want.Kind, actions[i].Kind)
			}
		})
	}
}

func TestParseCommandActions(t *testing.T) {
	text := "Sure:\n>>> EXEC_CMD: git add .\n>>> EXEC_CMD: git commit -m \"x\""
	actions := ParseCommandActions(text)
	require.Len(t, actions, 2)
	assert.Equal(t, "git add .", actions[0].Command)
	assert.Equal(t, `git commit -m "x"`, actions[1].Command)
	assert.Equal(t, ActionRunCommand, actions[0].Kind)
}

func TestApplyFileActions(t *testing.T) {
	root := t.TempDir()
	executor := NewActionExecutor(root)

	text := "Intro.\n>>> START_FILE: src/main.go\npackage main\n>>> END_FILE\n>>> START_FILE: README.md\n# Hello\n>>> END_FILE\nOutro."
	result := executor.ApplyFileActions(text, "myproject")

	// Both files land under the project directory
	data, err := os.ReadFile(filepath.Join(root, "myproject", "src", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))

	data, err = os.ReadFile(filepath.Join(root, "myproject", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Hello", string(data))

	// One outcome marker per block, markers consumed, prose intact
	assert.Equal(t, 2, strings.Count(result, "✅ **SUCCESS**"))
	assert.NotContains(t, result, ">>> START_FILE:")
	assert.NotContains(t, result, ">>> END_FILE")
	assert.Contains(t, result, "Intro.")
	assert.Contains(t, result, "Outro.")
	assert.Contains(t, result, "`src/main.go`")
	assert.Contains(t, result, "`README.md`")

	// Already-rewritten text has no markers left, a second pass is a no-op
	assert.Equal(t, result, executor.ApplyFileActions(result, "myproject"))
}

func TestApplyFileActions_NoMarkersIsNoOp(t *testing.T) {
	executor := NewActionExecutor(t.TempDir())

	text := "No actions in this answer."
	assert.Equal(t, text, executor.ApplyFileActions(text, "p"))
}

func TestApplyFileActions_PathEscapeRejected(t *testing.T) {
	root := t.TempDir()
	executor := NewActionExecutor(root)

	text := ">>> START_FILE: ../escape.txt\nowned\n>>> END_FILE"
	result := executor.ApplyFileActions(text, "proj")

	assert.Contains(t, result, "❌ **ERROR**")
	assert.Contains(t, result, "path escapes the project root")

	// Nothing written outside the project dir
	_, err := os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyFileActions_FailureIsLocal(t *testing.T) {
	root := t.TempDir()
	executor := NewActionExecutor(root)

	// First block fails on containment, second still applies
	text := ">>> START_FILE: /abs/path.txt\nX\n>>> END_FILE\n>>> START_FILE: ok.txt\nY\n>>> END_FILE"
	result := executor.ApplyFileActions(text, "proj")

	assert.Contains(t, result, "❌ **ERROR**")
	assert.Contains(t, result, "✅ **SUCCESS**")

	data, err := os.ReadFile(filepath.Join(root, "proj", "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Y", string(data))
}

func TestApplyCommandActions(t *testing.T) {
	executor := NewActionExecutor(t.TempDir())

	var ran []string
	executor.runCommand = func(ctx context.Context, command string) (string, error) {
		ran = append(ran, command)
		return "On branch main\n", nil
	}

	text := ">>> EXEC_CMD: git status"
	result := executor.ApplyCommandActions(context.Background(), text)

	assert.Equal(t, []string{"git status"}, ran)
	assert.Contains(t, result, "💻 **Executed**: `git status`")
	assert.Contains(t, result, "On branch main")
	assert.NotContains(t, result, ">>> EXEC_CMD:")
}

func TestApplyCommandActions_ConsumesCommandLineBreak(t *testing.T) {
	executor := NewActionExecutor(t.TempDir())
	executor.runCommand = func(ctx context.Context, command string) (string, error) {
		return "ok", nil
	}

	text := "Running it now.\n>>> EXEC_CMD: git status\nAll done."
	result := executor.ApplyCommandActions(context.Background(), text)

	expected := "Running it now.\n\n💻 **Executed**: `git status`\n```\nok\n```All done."
	assert.Equal(t, expected, result)
}

func TestApplyCommandActions_NonGitNeverSpawned(t *testing.T) {
	executor := NewActionExecutor(t.TempDir())

	spawned := false
	executor.runCommand = func(ctx context.Context, command string) (string, error) {
		spawned = true
		return "", nil
	}

	text := ">>> EXEC_CMD: rm -rf /"
	result := executor.ApplyCommandActions(context.Background(), text)

	assert.False(t, spawned)
	assert.Contains(t, result, "Security Restriction: Only 'git' commands are allowed in this version.")
	assert.Contains(t, result, "`rm -rf /`")
}

func TestApplyCommandActions_FailureIsLocal(t *testing.T) {
	executor := NewActionExecutor(t.TempDir())

	executor.runCommand = func(ctx context.Context, command string) (string, error) {
		if strings.Contains(command, "push") {
			return "", fmt.Errorf("no remote configured")
		}
		return "", nil
	}

	text := ">>> EXEC_CMD: git push\n>>> EXEC_CMD: git status"
	result := executor.ApplyCommandActions(context.Background(), text)

	assert.Contains(t, result, "❌ **Command Error**: `git push`")
	assert.Contains(t, result, "no remote configured")
	assert.Contains(t, result, "💻 **Executed**: `git status`")
	assert.Contains(t, result, "Done (No Output)")
}

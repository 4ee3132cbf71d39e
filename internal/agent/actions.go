package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Action-block wire format. Generated text may embed file-write blocks
//
//	>>> START_FILE: path/to/filename.ext
//	<raw file content>
//	>>> END_FILE
//
// and command lines
//
//	>>> EXEC_CMD: git <command and args>
//
// The markers are part of the persona prompts; they must not change.
const (
	fileStartMarker = ">>> START_FILE:"
	fileEndMarker   = ">>> END_FILE"
	cmdMarker       = ">>> EXEC_CMD:"
)

// ActionKind discriminates parsed action records.
type ActionKind int

const (
	// ActionWriteFile writes literal content to a relative path.
	ActionWriteFile ActionKind = iota
	// ActionRunCommand executes a shell command line.
	ActionRunCommand
)

// Action is one parsed action block: its typed payload plus the byte span
// of the original marker region, so the executor can rewrite the text in
// place without re-scanning.
type Action struct {
	Kind    ActionKind
	Path    string // ActionWriteFile
	Content string // ActionWriteFile
	Command string // ActionRunCommand

	start, end int
}

// HasFileActions reports whether text contains a file-write marker.
func HasFileActions(text string) bool {
	return strings.Contains(text, fileStartMarker)
}

// HasCommandActions reports whether text contains a command marker.
func HasCommandActions(text string) bool {
	return strings.Contains(text, cmdMarker)
}

// ParseFileActions extracts every well-formed file-write block in order.
// Unterminated blocks are left alone rather than consumed.
func ParseFileActions(text string) []Action {
	var actions []Action
	off := 0
	for {
		i := strings.Index(text[off:], fileStartMarker)
		if i < 0 {
			break
		}
		start := off + i
		pathStart := start + len(fileStartMarker)

		nl := strings.IndexByte(text[pathStart:], '\n')
		if nl < 0 {
			break
		}
		contentStart := pathStart + nl + 1

		j := strings.Index(text[contentStart:], fileEndMarker)
		if j < 0 {
			break
		}
		end := contentStart + j + len(fileEndMarker)

		actions = append(actions, Action{
			Kind:    ActionWriteFile,
			Path:    strings.TrimSpace(text[pathStart : pathStart+nl]),
			Content: strings.TrimSpace(text[contentStart : contentStart+j]),
			start:   start,
			end:     end,
		})
		off = end
	}
	return actions
}

// ParseCommandActions extracts every command line in order. A command
// runs to the end of its line (or of the text); the span includes the
// line break, so the rewritten outcome fragment supplies its own.
func ParseCommandActions(text string) []Action {
	var actions []Action
	off := 0
	for {
		i := strings.Index(text[off:], cmdMarker)
		if i < 0 {
			break
		}
		start := off + i
		cmdStart := start + len(cmdMarker)

		cmdEnd := len(text)
		end := len(text)
		if nl := strings.IndexByte(text[cmdStart:], '\n'); nl >= 0 {
			cmdEnd = cmdStart + nl
			end = cmdEnd + 1
		}

		actions = append(actions, Action{
			Kind:    ActionRunCommand,
			Command: strings.TrimSpace(text[cmdStart:cmdEnd]),
			start:   start,
			end:     end,
		})
		off = end
	}
	return actions
}

// CommandRunner executes a command line and returns its combined output.
type CommandRunner func(ctx context.Context, command string) (string, error)

// ActionExecutor applies parsed actions and rewrites the generated text
// with one outcome fragment per block, in original order. Block failures
// are local: a failed write or command never stops the remaining blocks.
type ActionExecutor struct {
	workspaceRoot string
	runCommand    CommandRunner
}

// NewActionExecutor creates an executor writing under workspaceRoot and
// running accepted commands in the server's working directory.
func NewActionExecutor(workspaceRoot string) *ActionExecutor {
	return &ActionExecutor{
		workspaceRoot: workspaceRoot,
		runCommand:    runShellCommand,
	}
}

func runShellCommand(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	return string(out), err
}

// ApplyFileActions runs the file-write pass: every block is written under
// workspaceRoot/projectPath (parent dirs created) and replaced by a
// success marker with a short content preview, or a failure marker with
// the reason. Text without file markers is returned unchanged.
func (e *ActionExecutor) ApplyFileActions(text, projectPath string) string {
	actions := ParseFileActions(text)
	if len(actions) == 0 {
		return text
	}

	root := e.workspaceRoot
	if projectPath != "" {
		root = filepath.Join(e.workspaceRoot, projectPath)
	}

	return rewrite(text, actions, func(a Action) string {
		if err := e.writeFile(root, a.Path, a.Content); err != nil {
			return fmt.Sprintf("\n❌ **ERROR**: Failed to write file `%s`. Reason: %s", a.Path, err.Error())
		}
		return fmt.Sprintf("\n✅ **SUCCESS**: File created at `%s`\n```\n%s...\n```", a.Path, truncate(a.Content, 100))
	})
}

// writeFile resolves path under root and writes content. Paths resolving
// outside the project root are rejected: the model chooses these paths
// and is not trusted with traversal.
func (e *ActionExecutor) writeFile(root, path, content string) error {
	if path == "" {
		return fmt.Errorf("empty file path")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed")
	}

	target := filepath.Join(root, path)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes the project root")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ApplyCommandActions runs the command pass. Commands not starting with
// "git " are replaced by a security-restriction failure without ever
// being spawned; accepted commands run to completion and their combined
// output (truncated) replaces the marker line.
func (e *ActionExecutor) ApplyCommandActions(ctx context.Context, text string) string {
	actions := ParseCommandActions(text)
	if len(actions) == 0 {
		return text
	}

	return rewrite(text, actions, func(a Action) string {
		if !strings.HasPrefix(a.Command, "git ") {
			return fmt.Sprintf("\n❌ **Command Error**: `%s`\n> Security Restriction: Only 'git' commands are allowed in this version.", a.Command)
		}

		output, err := e.runCommand(ctx, a.Command)
		if err != nil {
			return fmt.Sprintf("\n❌ **Command Error**: `%s`\n> %s", a.Command, err.Error())
		}

		display := strings.TrimSpace(output)
		if display == "" {
			display = "Done (No Output)"
		} else {
			display = truncate(display, 200)
		}
		return fmt.Sprintf("\n💻 **Executed**: `%s`\n```\n%s\n```", a.Command, display)
	})
}

// rewrite replaces each action's span with its outcome fragment, keeping
// the surrounding text and the original block order intact.
func rewrite(text string, actions []Action, outcome func(Action) string) string {
	var b strings.Builder
	last := 0
	for _, a := range actions {
		b.WriteString(text[last:a.start])
		b.WriteString(outcome(a))
		last = a.end
	}
	b.WriteString(text[last:])
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

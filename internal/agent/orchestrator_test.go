package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virulabs/nexus/internal/generation"
)

// fakeGenerator returns canned text and records the request it saw.
type fakeGenerator struct {
	response string
	lastReq  generation.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) string {
	f.lastReq = req
	return f.response
}

func newTestOrchestrator(t *testing.T, gen generation.Generator) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	personas := NewPersonaStore(filepath.Join(dir, "agents.json"))
	executor := NewActionExecutor(dir)
	executor.runCommand = func(ctx context.Context, command string) (string, error) {
		return "ok", nil
	}
	return NewOrchestrator(personas, gen, executor), dir
}

func TestOrchestrator_Process_RoutesAndUsesPersonaPrompt(t *testing.T) {
	gen := &fakeGenerator{response: "Here is my analysis."}
	orchestrator, _ := newTestOrchestrator(t, gen)

	response, tag := orchestrator.Process(context.Background(), "debug this error for me", "proj")

	assert.Equal(t, PersonaDebugger, tag)
	assert.Equal(t, "Here is my analysis.", response)
	assert.Equal(t, "debug this error for me", gen.lastReq.Prompt)
	assert.Contains(t, gen.lastReq.System, "DEBUGGER")
}

func TestOrchestrator_Process_DeveloperAppliesFileActions(t *testing.T) {
	gen := &fakeGenerator{
		response: ">>> START_FILE: src/hello.js\nconsole.log('hi');\n>>> END_FILE",
	}
	orchestrator, dir := newTestOrchestrator(t, gen)

	response, tag := orchestrator.Process(context.Background(), "write a hello script", "proj")

	assert.Equal(t, PersonaDeveloper, tag)
	assert.Contains(t, response, "✅ **SUCCESS**")

	data, err := os.ReadFile(filepath.Join(dir, "proj", "src", "hello.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi');", string(data))
}

func TestOrchestrator_Process_NonDeveloperLeavesMarkersAlone(t *testing.T) {
	// A non-developer persona emitting file markers must not trigger the
	// file pass.
	gen := &fakeGenerator{
		response: ">>> START_FILE: src/hello.js\nconsole.log('hi');\n>>> END_FILE",
	}
	orchestrator, dir := newTestOrchestrator(t, gen)

	response, tag := orchestrator.Process(context.Background(), "hello there", "proj")

	assert.Equal(t, PersonaRoot, tag)
	assert.Contains(t, response, ">>> START_FILE:")

	_, err := os.Stat(filepath.Join(dir, "proj", "src", "hello.js"))
	assert.True(t, os.IsNotExist(err))
}

func TestOrchestrator_Process_GitSpecialistAppliesCommands(t *testing.T) {
	gen := &fakeGenerator{response: ">>> EXEC_CMD: git status"}
	orchestrator, _ := newTestOrchestrator(t, gen)

	response, tag := orchestrator.Process(context.Background(), "check the git status", "")

	assert.Equal(t, PersonaGitSpecialist, tag)
	assert.Contains(t, response, "💻 **Executed**: `git status`")
}

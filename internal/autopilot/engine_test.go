package autopilot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virulabs/nexus/internal/agent"
	"github.com/virulabs/nexus/internal/generation"
)

type fakeRegistry struct {
	projects map[string]*Project
}

func (r *fakeRegistry) GetProject(ctx context.Context, id string) (*Project, error) {
	if p, ok := r.projects[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project not found")
}

type fakeMissionLog struct {
	mu     sync.Mutex
	events []string
}

func (l *fakeMissionLog) Append(ctx context.Context, projectID, userID, event string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *fakeMissionLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeProcessor writes the planned file under the workspace like the real
// orchestrator's file pass would.
type fakeProcessor struct {
	workspaceRoot string
	content       string
	instructions  []string
}

func (p *fakeProcessor) Process(ctx context.Context, instruction, projectPath string) (string, agent.PersonaTag) {
	p.instructions = append(p.instructions, instruction)
	if p.content != "" {
		// The implementation prompt names the file after "Create/Update ".
		var file string
		fmt.Sscanf(instruction, "Implementation Goal: Create/Update %s", &file)
		target := filepath.Join(p.workspaceRoot, projectPath, file)
		os.MkdirAll(filepath.Dir(target), 0o755)
		os.WriteFile(target, []byte(p.content), 0o644)
	}
	return "done", agent.PersonaDeveloper
}

type fakePlanner struct {
	response string
}

func (f *fakePlanner) Generate(ctx context.Context, req generation.Request) string {
	return f.response
}

func newTestEngine(t *testing.T, planResponse, fileContent string) (*Engine, *fakeMissionLog, string) {
	t.Helper()
	root := t.TempDir()
	registry := &fakeRegistry{projects: map[string]*Project{
		"p1": {ID: "p1", Path: "demo"},
	}}
	missionLog := &fakeMissionLog{}
	processor := &fakeProcessor{workspaceRoot: root, content: fileContent}
	engine := NewEngine(registry, missionLog, processor, &fakePlanner{response: planResponse}, root, nil)
	return engine, missionLog, root
}

func TestEngine_Run_FullMission(t *testing.T) {
	plan := `{ "files": ["src/index.html", "src/app.js"] }`
	engine, missionLog, root := newTestEngine(t, plan, "console.log('implemented');")

	engine.Run(context.Background(), "p1", "u1", "build a landing page")

	events := missionLog.all()
	require.Len(t, events, 9)
	assert.Contains(t, events[0], "🚀 **Autopilot Engaged**")
	assert.Contains(t, events[0], "build a landing page")
	assert.Contains(t, events[1], "📋 **Plan Approved**")
	assert.Contains(t, events[1], "`src/index.html`")
	assert.Contains(t, events[1], "`src/app.js`")
	assert.Contains(t, events[2], "🔨 **Implementing**: `src/index.html`")
	assert.Contains(t, events[3], "🧐 **Verifying**: `src/index.html`")
	assert.Contains(t, events[4], "✅ **Verified**: `src/index.html` looks good.")
	assert.Contains(t, events[5], "🔨 **Implementing**: `src/app.js`")
	assert.Contains(t, events[7], "✅ **Verified**")
	assert.Contains(t, events[8], "🎉 **Mission Complete**: All tasks finished.")

	// Both files really exist under the project directory
	for _, f := range []string{"src/index.html", "src/app.js"} {
		_, err := os.Stat(filepath.Join(root, "demo", f))
		assert.NoError(t, err)
	}
}

func TestEngine_Run_ProsePlanLogsExactlyTwoEvents(t *testing.T) {
	// A planning response with no JSON at all produces the start event and
	// the plan-failure event, nothing else.
	engine, missionLog, _ := newTestEngine(t, "I think you should start with the homepage.", "")

	engine.Run(context.Background(), "p1", "u1", "build a landing page")

	events := missionLog.all()
	require.Len(t, events, 2)
	assert.Contains(t, events[0], "🚀 **Autopilot Engaged**")
	assert.Contains(t, events[1], "❌ **Plan Failed**: Could not parse AI plan.")
}

func TestEngine_Run_PlanJSONEmbeddedInProse(t *testing.T) {
	plan := "Sure! Here is the plan you asked for:\n{ \"files\": [\"main.go\"] }\nGood luck!"
	engine, missionLog, _ := newTestEngine(t, plan, "package main // implemented")

	engine.Run(context.Background(), "p1", "u1", "write the entrypoint")

	events := missionLog.all()
	assert.Contains(t, events[1], "📋 **Plan Approved**")
	assert.Contains(t, events[1], "`main.go`")
	assert.Contains(t, events[len(events)-1], "🎉 **Mission Complete**")
}

func TestEngine_Run_UnknownProjectIsCriticalFailure(t *testing.T) {
	engine, missionLog, _ := newTestEngine(t, `{ "files": [] }`, "")

	engine.Run(context.Background(), "missing", "u1", "goal")

	events := missionLog.all()
	require.Len(t, events, 2)
	assert.Contains(t, events[0], "🚀 **Autopilot Engaged**")
	assert.Contains(t, events[1], "💥 **CRITICAL FAILURE**: project not found")
}

func TestEngine_Run_ShortFileIsCorrectionNeededNotRetried(t *testing.T) {
	// The processor writes fewer than 10 bytes; verification flags the file
	// and the mission continues to completion without a second attempt.
	plan := `{ "files": ["tiny.txt"] }`
	engine, missionLog, root := newTestEngine(t, plan, "x")

	engine.Run(context.Background(), "p1", "u1", "goal")

	events := missionLog.all()
	require.Len(t, events, 6)
	assert.Contains(t, events[4], "⚠️ **Correction Needed**: File seems empty or missing.")
	assert.Contains(t, events[5], "🎉 **Mission Complete**")

	// The flagged file keeps its short content, no rewrite happened
	data, err := os.ReadFile(filepath.Join(root, "demo", "tiny.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestEngine_Run_MissingFileIsCorrectionNeeded(t *testing.T) {
	// The processor writes nothing at all.
	plan := `{ "files": ["ghost.go"] }`
	engine, missionLog, _ := newTestEngine(t, plan, "")

	engine.Run(context.Background(), "p1", "u1", "goal")

	events := missionLog.all()
	require.Len(t, events, 6)
	assert.Contains(t, events[2], "🔨 **Implementing**: `ghost.go`")
	assert.Contains(t, events[3], "🧐 **Verifying**: `ghost.go`")
	assert.Contains(t, events[4], "⚠️ **Correction Needed**: File seems empty or missing.")
	assert.Contains(t, events[5], "🎉 **Mission Complete**")
}

func TestEngine_Run_EmptyPlanCompletesImmediately(t *testing.T) {
	engine, missionLog, _ := newTestEngine(t, `{ "files": [] }`, "")

	engine.Run(context.Background(), "p1", "u1", "nothing to do")

	events := missionLog.all()
	require.Len(t, events, 3)
	assert.Contains(t, events[1], "📋 **Plan Approved**")
	assert.Contains(t, events[2], "🎉 **Mission Complete**")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		ok       bool
	}{
		{"bare_object", `{"files":[]}`, `{"files":[]}`, true},
		{"prose_around_object", `plan: {"files":["a"]} done`, `{"files":["a"]}`, true},
		{"no_braces", "no json here", "", false},
		{"only_open_brace", "start { and nothing", "", false},
		{"close_before_open", "} backwards {", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := extractJSON(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, raw)
		})
	}
}

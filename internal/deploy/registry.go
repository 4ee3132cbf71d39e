// Package deploy manages local preview deployments: each project gets a
// static file server spawned on its own port, tracked in a registry.
package deploy

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const basePort = 4000

// Deployment records one running preview server.
type Deployment struct {
	ProjectID string `json:"projectId"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
}

// Spawner starts the serve process for a project directory and returns a
// handle whose Wait unblocks when the process exits. Injectable for tests.
type Spawner func(ctx context.Context, dir string, port int) (Process, error)

// Process is the minimal surface the registry needs from a spawned server.
type Process interface {
	Wait() error
	Kill() error
}

// Registry tracks one live deployment per project.
type Registry struct {
	workspaceRoot string
	serveCommand  string
	spawn         Spawner

	mu       sync.Mutex
	nextPort int
	running  map[string]*entry
}

type entry struct {
	deployment Deployment
	process    Process
}

// NewRegistry builds a registry serving project directories under
// workspaceRoot with serveCommand (e.g. "npx serve").
func NewRegistry(workspaceRoot, serveCommand string) *Registry {
	r := &Registry{
		workspaceRoot: workspaceRoot,
		serveCommand:  serveCommand,
		nextPort:      basePort,
		running:       make(map[string]*entry),
	}
	r.spawn = r.spawnCommand
	return r
}

// Deploy starts a preview server for the project directory. If the project
// is already deployed, the existing deployment is returned unchanged.
func (r *Registry) Deploy(ctx context.Context, projectID, projectPath string) (*Deployment, error) {
	r.mu.Lock()
	if e, ok := r.running[projectID]; ok {
		d := e.deployment
		r.mu.Unlock()
		return &d, nil
	}
	port := r.nextPort
	r.nextPort++
	r.mu.Unlock()

	dir := filepath.Join(r.workspaceRoot, projectPath)
	proc, err := r.spawn(ctx, dir, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start preview server: %w", err)
	}

	d := Deployment{
		ProjectID: projectID,
		Port:      port,
		URL:       fmt.Sprintf("http://localhost:%d", port),
	}
	r.mu.Lock()
	r.running[projectID] = &entry{deployment: d, process: proc}
	r.mu.Unlock()

	log.Printf(`{"level":"info","message":"Preview deployed","project_id":"%s","port":%d}`, projectID, port)

	go func() {
		err := proc.Wait()
		r.mu.Lock()
		if e, ok := r.running[projectID]; ok && e.process == proc {
			delete(r.running, projectID)
		}
		r.mu.Unlock()
		if err != nil {
			log.Printf(`{"level":"warn","message":"Preview server exited","project_id":"%s","error":"%v"}`, projectID, err)
		} else {
			log.Printf(`{"level":"info","message":"Preview server exited","project_id":"%s"}`, projectID)
		}
	}()

	return &d, nil
}

// Stop kills the project's preview server if one is running.
func (r *Registry) Stop(projectID string) bool {
	r.mu.Lock()
	e, ok := r.running[projectID]
	if ok {
		delete(r.running, projectID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := e.process.Kill(); err != nil {
		log.Printf(`{"level":"warn","message":"Failed to kill preview server","project_id":"%s","error":"%v"}`, projectID, err)
	}
	return true
}

// Get returns the live deployment for a project, if any.
func (r *Registry) Get(projectID string) (*Deployment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.running[projectID]; ok {
		d := e.deployment
		return &d, true
	}
	return nil, false
}

// List returns all live deployments.
func (r *Registry) List() []Deployment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Deployment, 0, len(r.running))
	for _, e := range r.running {
		out = append(out, e.deployment)
	}
	return out
}

func (r *Registry) spawnCommand(ctx context.Context, dir string, port int) (Process, error) {
	parts := strings.Fields(r.serveCommand)
	if len(parts) == 0 {
		return nil, fmt.Errorf("serve command is empty")
	}
	args := append(parts[1:], "-l", strconv.Itoa(port))
	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() error { return p.cmd.Wait() }

func (p *osProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

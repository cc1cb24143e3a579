package taskmk

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	getter "github.com/hashicorp/go-getter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Provisioner ensures the toolchain and tools a task declares are usable
// before the task runs. Toolchain selection never mutates the process
// environment: it yields overrides that the scheduler applies to the
// child process only.
type Provisioner struct {
	toolchains   map[string]map[string]string
	toolSources  map[string]string
	toolDir      string
	allowInstall bool

	// provisioned memoizes per-run tool checks so a task whose tool is
	// already present performs no reinstall. mu serializes the checks
	// across parallel-stage workers, which also keeps two siblings from
	// fetching the same tool twice.
	mu          sync.Mutex
	provisioned map[string]bool

	lookPath func(file string) (string, error)
	fetch    func(dst, src string) error
}

func NewProvisioner(c *ConfigDef, toolDir string, allowInstall bool) *Provisioner {
	return &Provisioner{
		toolchains:   c.Toolchains,
		toolSources:  c.ToolSources,
		toolDir:      toolDir,
		allowInstall: allowInstall,
		provisioned:  map[string]bool{},
		lookPath:     exec.LookPath,
		fetch:        fetchTool,
	}
}

// ToolchainEnv returns the environment overrides for the toolchain the
// task declares, scoped to that task's invocation only.
func (p *Provisioner) ToolchainEnv(task *Task) (map[string]string, error) {
	if task.Toolchain == "" {
		return nil, nil
	}

	env, declared := p.toolchains[task.Toolchain]
	if !declared {
		return nil, &ToolchainUnavailableError{Task: task.Name, Toolchain: task.Toolchain}
	}

	return env, nil
}

// EnsureTool verifies the task's required tool is present, installing it
// when the policy allows. The check is idempotent within a run.
func (p *Provisioner) EnsureTool(task *Task) error {
	tool := task.InstallTool
	if tool == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provisioned[tool] {
		return nil
	}

	ctx := log.WithFields(log.Fields{"task": task.Name, "tool": tool})

	if _, err := p.lookPath(tool); err == nil {
		ctx.Debugf("tool found on PATH")
		p.provisioned[tool] = true
		return nil
	}

	installed := filepath.Join(p.toolDir, tool)
	if stat, err := os.Stat(installed); err == nil && !stat.IsDir() {
		ctx.Debugf("tool found in %s", p.toolDir)
		p.provisioned[tool] = true
		return nil
	}

	if !p.allowInstall {
		return &ToolMissingError{Task: task.Name, Tool: tool, Reason: "installing tools is disallowed by policy"}
	}

	source, ok := p.toolSources[tool]
	if !ok {
		return &ToolMissingError{Task: task.Name, Tool: tool, Reason: "no source configured under tool_sources"}
	}

	ctx.Infof("installing tool from %s", source)

	if err := p.fetch(installed, source); err != nil {
		return errors.Wrapf(err, "failed installing tool %q from %q", tool, source)
	}

	if err := os.Chmod(installed, 0755); err != nil {
		return errors.Wrapf(err, "failed marking tool %q executable", tool)
	}

	p.provisioned[tool] = true
	return nil
}

func fetchTool(dst, src string) error {
	pwd, err := os.Getwd()
	if err != nil {
		return err
	}
	client := &getter.Client{
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	return client.Get()
}

package taskmk

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeCommandRunner records invocations instead of spawning processes.
// Exit statuses are keyed by task name; unlisted tasks succeed.
type fakeCommandRunner struct {
	mu       sync.Mutex
	commands []Command
	statuses map[string]int
}

func (f *fakeCommandRunner) Run(cmd Command) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.statuses[cmd.Task], nil
}

func (f *fakeCommandRunner) ranTasks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := []string{}
	for _, cmd := range f.commands {
		names = append(names, cmd.Task)
	}
	return names
}

func newTestTaskRunner(fake *fakeCommandRunner, jobs int) *TaskRunner {
	provisioner := NewProvisioner(NewDefaultConfigDef(), ".taskmk/tools", false)
	return NewTaskRunner(provisioner, fake, jobs)
}

func planFor(t *testing.T, yaml string, name string) (*Plan, *TaskRegistry) {
	t.Helper()

	registry := registryFromYaml(t, yaml)
	plan, err := NewGraphBuilder(registry).Expand(name)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	return plan, registry
}

func TestRunPipelineInOrder(t *testing.T) {
	plan, _ := planFor(t, pipelineYaml, "all")

	fake := &fakeCommandRunner{statuses: map[string]int{}}
	runner := newTestTaskRunner(fake, 1)

	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}

	if diff := cmp.Diff([]string{"build", "test", "lint"}, fake.ranTasks()); diff != "" {
		t.Errorf("ran tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFailFast(t *testing.T) {
	plan, _ := planFor(t, pipelineYaml, "all")

	fake := &fakeCommandRunner{statuses: map[string]int{"test": 101}}
	runner := newTestTaskRunner(fake, 1)

	err := runner.Run(plan)
	if err == nil {
		t.Fatalf("expected an error")
	}

	execErr, ok := err.(*TaskExecutionError)
	if !ok {
		t.Fatalf("expected TaskExecutionError, got %T: %v", err, err)
	}
	if execErr.Task != "test" {
		t.Errorf("unexpected failing task: %s", execErr.Task)
	}
	if execErr.ExitStatus != 101 {
		t.Errorf("unexpected exit status: %d", execErr.ExitStatus)
	}

	for _, name := range fake.ranTasks() {
		if name == "lint" {
			t.Errorf("lint must not run after test failed: %v", fake.ranTasks())
		}
	}
}

func TestRunFailingDependencyStopsEverything(t *testing.T) {
	plan, _ := planFor(t, pipelineYaml, "all")

	fake := &fakeCommandRunner{statuses: map[string]int{"build": 2}}
	runner := newTestTaskRunner(fake, 1)

	err := runner.Run(plan)
	if err == nil {
		t.Fatalf("expected an error")
	}

	if diff := cmp.Diff([]string{"build"}, fake.ranTasks()); diff != "" {
		t.Errorf("ran tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTaskAtMostOnce(t *testing.T) {
	plan, _ := planFor(t, pipelineYaml, "all")

	fake := &fakeCommandRunner{statuses: map[string]int{}}
	runner := newTestTaskRunner(fake, 1)

	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}
	// Running the same plan through the same scheduler again performs no
	// further invocations.
	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}

	if len(fake.ranTasks()) != 3 {
		t.Errorf("expected 3 invocations total, got %v", fake.ranTasks())
	}
}

const parallelPipelineYaml = `
tasks:
  build:
    command: cargo
    args: ["build"]
  test:
    dependencies: [build]
    command: cargo
    args: ["test"]
  lint:
    dependencies: [build]
    command: cargo
    args: ["clippy"]
  checks:
    alias: [test, lint]
    parallel: true
`

func TestRunParallelGroup(t *testing.T) {
	plan, registry := planFor(t, parallelPipelineYaml, "checks")

	fake := &fakeCommandRunner{statuses: map[string]int{}}
	runner := newTestTaskRunner(fake, 2)

	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}

	ran := fake.ranTasks()
	if len(ran) != 3 {
		t.Fatalf("expected 3 invocations, got %v", ran)
	}
	if ran[0] != "build" {
		t.Errorf("expected build to run before the group: %v", ran)
	}
	assertTopological(t, registry, ran)
}

func TestRunParallelGroupSkipsSiblingsAfterFailure(t *testing.T) {
	plan, _ := planFor(t, parallelPipelineYaml, "checks")

	fake := &fakeCommandRunner{statuses: map[string]int{"test": 1}}
	// One worker makes the launch order deterministic: test fails, lint
	// is never launched.
	runner := newTestTaskRunner(fake, 1)

	err := runner.Run(plan)
	if err == nil {
		t.Fatalf("expected an error")
	}

	execErr, ok := AsTaskExecutionError(err)
	if !ok {
		t.Fatalf("expected a TaskExecutionError in %T: %v", err, err)
	}
	if execErr.Task != "test" {
		t.Errorf("unexpected failing task: %s", execErr.Task)
	}

	if diff := cmp.Diff([]string{"build", "test"}, fake.ranTasks()); diff != "" {
		t.Errorf("ran tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestRunParallelGroupProvisionsTools(t *testing.T) {
	yaml := `
tool_sources:
  cargo-llvm-cov: https://tools.example.com/cargo-llvm-cov
  cargo-fuzz: https://tools.example.com/cargo-fuzz
tasks:
  coverage:
    command: cargo
    args: ["llvm-cov"]
    install_tool: cargo-llvm-cov
  fuzz:
    command: cargo
    args: ["fuzz"]
    install_tool: cargo-fuzz
  checks:
    alias: [coverage, fuzz]
    parallel: true
`
	config, err := ReadConfigFromString(yaml)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	registry := NewTaskRegistry()
	if err := registry.RegisterConfig(config); err != nil {
		t.Fatalf("Error: %v", err)
	}

	plan, err := NewGraphBuilder(registry).Expand("checks")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	provisioner := NewProvisioner(config, t.TempDir(), true)
	provisioner.lookPath = func(file string) (string, error) {
		return "", os.ErrNotExist
	}

	// Both workers provision concurrently; the fetch counter must see
	// exactly one install per tool.
	var mu sync.Mutex
	fetched := map[string]int{}
	provisioner.fetch = func(dst, src string) error {
		mu.Lock()
		fetched[src]++
		mu.Unlock()
		return os.WriteFile(dst, []byte("#!/bin/sh\n"), 0755)
	}

	fake := &fakeCommandRunner{statuses: map[string]int{}}
	runner := NewTaskRunner(provisioner, fake, 2)

	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}

	if len(fetched) != 2 {
		t.Fatalf("expected both tools to be installed, got %v", fetched)
	}
	for src, count := range fetched {
		if count != 1 {
			t.Errorf("expected exactly one install of %s, got %d", src, count)
		}
	}
	if len(fake.ranTasks()) != 2 {
		t.Errorf("expected 2 invocations, got %v", fake.ranTasks())
	}
}

func TestRunExportsTaskEnvironment(t *testing.T) {
	yaml := `
toolchains:
  nightly:
    RUSTUP_TOOLCHAIN: nightly
tasks:
  fuzz:
    command: cargo
    args: ["fuzz"]
    toolchain: nightly
    env:
      FUZZ_SEED: "42"
`
	config, err := ReadConfigFromString(yaml)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	registry := NewTaskRegistry()
	if err := registry.RegisterConfig(config); err != nil {
		t.Fatalf("Error: %v", err)
	}

	plan, err := NewGraphBuilder(registry).Expand("fuzz")
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	fake := &fakeCommandRunner{statuses: map[string]int{}}
	provisioner := NewProvisioner(config, ".taskmk/tools", false)
	runner := NewTaskRunner(provisioner, fake, 1)

	if err := runner.Run(plan); err != nil {
		t.Fatalf("Error: %v", err)
	}

	if len(fake.commands) != 1 {
		t.Fatalf("expected 1 invocation, got %v", fake.ranTasks())
	}

	env := fake.commands[0].Env
	for _, expected := range []string{"RUSTUP_TOOLCHAIN=nightly", "FUZZ_SEED=42", "TASKMK_TASK=fuzz"} {
		found := false
		for _, pair := range env {
			if pair == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s in env %s", expected, strings.Join(env, " "))
		}
	}
}

package taskmk

import (
	"fmt"
	"strings"

	multierror "github.com/hashicorp/go-multierror"
)

// UnknownTaskError is returned when a task name is not present in the registry.
type UnknownTaskError struct {
	Task string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Task)
}

// DuplicateTaskError is returned when two task definitions share a name.
type DuplicateTaskError struct {
	Task string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is defined more than once", e.Task)
}

// InvalidTaskError is returned when a task definition violates the
// alias-or-command invariant: a task must be either a pure alias or a
// runnable command, never both and never neither.
type InvalidTaskError struct {
	Task   string
	Reason string
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task %q: %s", e.Task, e.Reason)
}

// CyclicAliasError is returned when alias resolution revisits a name
// already on the current resolution path.
type CyclicAliasError struct {
	Path []string
}

func (e *CyclicAliasError) Error() string {
	return fmt.Sprintf("alias cycle: %s", strings.Join(e.Path, " -> "))
}

// DependencyCycleError is returned when dependency expansion revisits a
// task currently being expanded. Path holds the offending cycle.
type DependencyCycleError struct {
	Path []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// ToolchainUnavailableError is returned when a task requires a toolchain
// that is not declared in the configuration.
type ToolchainUnavailableError struct {
	Task      string
	Toolchain string
}

func (e *ToolchainUnavailableError) Error() string {
	return fmt.Sprintf("task %q requires toolchain %q which is not declared", e.Task, e.Toolchain)
}

// ToolchainConflictError is returned when sibling tasks grouped for
// parallel dispatch require different toolchains. This is a configuration
// error detected before any of the siblings is started.
type ToolchainConflictError struct {
	Tasks      []string
	Toolchains []string
}

func (e *ToolchainConflictError) Error() string {
	return fmt.Sprintf("parallel tasks %s require conflicting toolchains %s",
		strings.Join(e.Tasks, ", "), strings.Join(e.Toolchains, ", "))
}

// ToolMissingError is returned when a required tool is absent and cannot
// be installed, either because installs are disallowed by policy or
// because no source is configured for it.
type ToolMissingError struct {
	Task   string
	Tool   string
	Reason string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("task %q requires tool %q which is missing: %s", e.Task, e.Tool, e.Reason)
}

// TaskExecutionError is returned when an external command invoked for a
// task exits with a non-zero status. ExitStatus carries the command's own
// status so the process exit code can propagate it verbatim.
type TaskExecutionError struct {
	Task       string
	ExitStatus int
	Cause      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed with exit status %d", e.Task, e.ExitStatus)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Cause
}

// AsTaskExecutionError digs the first task execution failure out of an
// error, looking through wrap chains and aggregated parallel-group
// failures.
func AsTaskExecutionError(err error) (*TaskExecutionError, bool) {
	switch typed := err.(type) {
	case *TaskExecutionError:
		return typed, true
	case *multierror.Error:
		for _, wrapped := range typed.WrappedErrors() {
			if e, ok := AsTaskExecutionError(wrapped); ok {
				return e, ok
			}
		}
		return nil, false
	}

	type causer interface {
		Cause() error
	}
	if c, ok := err.(causer); ok {
		return AsTaskExecutionError(c.Cause())
	}

	return nil, false
}

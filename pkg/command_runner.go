package taskmk

import (
	"bufio"
	"os/exec"
	"syscall"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
)

// Command is one fully resolved external invocation: the program, its
// literal argument vector, and the complete child environment including
// any toolchain overrides.
type Command struct {
	Task string
	Name string
	Args []string
	Env  []string
}

// CommandRunner invokes an external command and reports its exit status.
// The scheduler depends on this interface so tests can substitute a fake
// without spawning processes.
type CommandRunner interface {
	Run(cmd Command) (int, error)
}

// ExecCommandRunner runs commands via os/exec, streaming stdout and
// stderr lines into the log tagged with their stream.
type ExecCommandRunner struct{}

func NewExecCommandRunner() *ExecCommandRunner {
	return &ExecCommandRunner{}
}

func (r *ExecCommandRunner) Run(command Command) (int, error) {
	ctx := log.WithFields(log.Fields{"task": command.Task, "cmd": append([]string{command.Name}, command.Args...)})

	ctx.Debug("command started")

	cmd := exec.Command(command.Name, command.Args...)
	cmd.Env = command.Env

	cmdReader, err := cmd.StdoutPipe()
	if err != nil {
		return -1, errors.Annotate(err, "error creating StdoutPipe for command")
	}

	errReader, err := cmd.StderrPipe()
	if err != nil {
		return -1, errors.Annotate(err, "error creating StderrPipe for command")
	}

	if err := cmd.Start(); err != nil {
		return -1, errors.Annotate(err, "error starting command")
	}

	channels := struct {
		Stdout chan string
		Stderr chan string
	}{
		Stdout: make(chan string),
		Stderr: make(chan string),
	}

	scanner := bufio.NewScanner(cmdReader)
	go func() {
		defer close(channels.Stdout)
		for scanner.Scan() {
			channels.Stdout <- scanner.Text()
		}
	}()

	errScanner := bufio.NewScanner(errReader)
	go func() {
		defer close(channels.Stderr)
		for errScanner.Scan() {
			channels.Stderr <- errScanner.Text()
		}
	}()

	stdoutEnds := false
	stderrEnds := false

	stdoutlog := ctx.WithFields(log.Fields{"stream": "stdout"})
	stderrlog := ctx.WithFields(log.Fields{"stream": "stderr"})

	// Coordinating stdout/stderr in this single place to not screw up message ordering
	for {
		select {
		case text, ok := <-channels.Stdout:
			if ok {
				stdoutlog.Info(text)
			} else {
				stdoutEnds = true
			}
		case text, ok := <-channels.Stderr:
			if ok {
				stderrlog.Info(text)
			} else {
				stderrEnds = true
			}
		}
		if stdoutEnds && stderrEnds {
			break
		}
	}

	var waitStatus syscall.WaitStatus
	if err := cmd.Wait(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			waitStatus = exitError.Sys().(syscall.WaitStatus)
			ctx.Errorf("command failed with exit status %d", waitStatus.ExitStatus())
			return waitStatus.ExitStatus(), nil
		}
		return -1, errors.Annotate(err, "command failed")
	}

	waitStatus = cmd.ProcessState.Sys().(syscall.WaitStatus)
	ctx.Debugf("command finished with status: %d", waitStatus.ExitStatus())

	return waitStatus.ExitStatus(), nil
}

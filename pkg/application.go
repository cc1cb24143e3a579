package taskmk

import (
	"fmt"
	"os"
	"path"

	bunyan "github.com/mumoshu/logrus-bunyan-formatter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Application wires the registry, graph builder, provisioner and
// scheduler together for one invocation.
type Application struct {
	Name        string
	ConfigFile  string
	Verbose     bool
	Output      string
	Colorize    bool
	LogToStderr bool
	Jobs        int

	TaskRegistry *TaskRegistry
	Graph        *GraphBuilder
	Provisioner  *Provisioner
	Runner       CommandRunner

	Log *log.Logger
}

func (p *Application) UpdateLoggingConfiguration() error {
	if p.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if p.LogToStderr {
		log.SetOutput(os.Stderr)
	}

	commandName := path.Base(os.Args[0])
	if p.Output == "bunyan" {
		log.SetFormatter(&bunyan.Formatter{Name: commandName})
	} else if p.Output == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if p.Output == "text" {
		log.SetFormatter(newTextLogFormatter(p.Colorize))
	} else if p.Output == "message" {
		log.SetFormatter(&MessageOnlyFormatter{})
	} else {
		return fmt.Errorf("unexpected output format specified: %s", p.Output)
	}

	return nil
}

// ExpandTask resolves the requested task into its execution plan without
// running anything.
func (p *Application) ExpandTask(name string) (*Plan, error) {
	return p.Graph.Expand(name)
}

// RunTask expands the requested task and executes the resulting plan.
// Configuration errors surface here before any process is spawned.
func (p *Application) RunTask(name string) error {
	ctx := log.WithFields(log.Fields{"task": name})

	plan, err := p.ExpandTask(name)
	if err != nil {
		return errors.Wrapf(err, "failed expanding task %q", name)
	}

	ctx.Debugf("app running task %s", name)

	runner := NewTaskRunner(p.Provisioner, p.Runner, p.Jobs)
	if err := runner.Run(plan); err != nil {
		return err
	}

	ctx.Debugf("app finished running task %s", name)

	return nil
}

func (p *Application) Tasks() map[string]*Task {
	return p.TaskRegistry.Tasks()
}

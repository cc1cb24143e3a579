package taskmk

import (
	"sync"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taskmk/taskmk/pkg/util/envutil"
	"github.com/taskmk/taskmk/pkg/util/stringutil"
)

// TaskRunner walks an execution plan stage by stage. Singleton stages run
// inline; a parallel stage is dispatched to a bounded worker pool and
// joined in full before the next stage starts. Any failure is fatal to
// the whole run: later stages are never started, already-running siblings
// drain gracefully, completed tasks are not rolled back.
type TaskRunner struct {
	provisioner *Provisioner
	runner      CommandRunner
	jobs        int

	mu       sync.Mutex
	executed map[string]bool
}

func NewTaskRunner(provisioner *Provisioner, runner CommandRunner, jobs int) *TaskRunner {
	if jobs < 1 {
		jobs = 1
	}
	return &TaskRunner{
		provisioner: provisioner,
		runner:      runner,
		jobs:        jobs,
		executed:    map[string]bool{},
	}
}

func (r *TaskRunner) Run(plan *Plan) error {
	for _, stage := range plan.Stages {
		if err := r.runStage(stage); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRunner) runStage(stage *Stage) error {
	if !stage.Parallel || len(stage.Tasks) == 1 {
		for _, task := range stage.Tasks {
			if err := r.runTask(task); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := r.jobs
	if jobs > len(stage.Tasks) {
		jobs = len(stage.Tasks)
	}

	taskCh := make(chan *Task)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var result *multierror.Error
	failed := false

	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				mu.Lock()
				skip := failed
				mu.Unlock()
				if skip {
					// A sibling already failed: stop launching, but let
					// the ones that started finish on their own workers.
					log.WithFields(log.Fields{"task": task.Name}).Debugf("skipped due to sibling failure")
					continue
				}

				if err := r.runTask(task); err != nil {
					mu.Lock()
					failed = true
					result = multierror.Append(result, err)
					mu.Unlock()
				}
			}
		}()
	}

	for _, task := range stage.Tasks {
		taskCh <- task
	}
	close(taskCh)

	wg.Wait()

	return result.ErrorOrNil()
}

func (r *TaskRunner) runTask(task *Task) error {
	r.mu.Lock()
	if r.executed[task.Name] {
		r.mu.Unlock()
		return nil
	}
	r.executed[task.Name] = true
	r.mu.Unlock()

	ctx := log.WithFields(log.Fields{"task": task.Name})

	ctx.Debugf("task %s started", task.Name)

	if err := r.provisioner.EnsureTool(task); err != nil {
		return err
	}

	toolchainEnv, err := r.provisioner.ToolchainEnv(task)
	if err != nil {
		return err
	}

	rendered, err := NewTaskTemplate(task).RenderEnv()
	if err != nil {
		return errors.Wrapf(err, "failed rendering env of task %q", task.Name)
	}

	// Env keys may be written in any of the usual config casings; the
	// child always sees the environment-variable form.
	taskEnv := map[string]string{}
	for name, value := range rendered {
		taskEnv[stringutil.ToEnvironmentName(name)] = value
	}

	env := envutil.Merge(envutil.ParseEnviron(), toolchainEnv, taskEnv, map[string]string{
		"TASKMK_TASK": task.Name,
	})

	status, err := r.runner.Run(Command{
		Task: task.Name,
		Name: task.Command,
		Args: task.Args,
		Env:  envutil.Environ(env),
	})
	if err != nil {
		return &TaskExecutionError{Task: task.Name, ExitStatus: status, Cause: err}
	}
	if status != 0 {
		return &TaskExecutionError{Task: task.Name, ExitStatus: status}
	}

	ctx.Debugf("task %s finished", task.Name)

	return nil
}

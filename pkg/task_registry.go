package taskmk

import (
	"sort"
)

// TaskRegistry holds every task definition known to one invocation. It is
// populated once at configuration-load time and read-only afterward.
type TaskRegistry struct {
	tasks map[string]*Task
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: map[string]*Task{},
	}
}

func (p *TaskRegistry) Register(task *Task) error {
	if _, exists := p.tasks[task.Name]; exists {
		return &DuplicateTaskError{Task: task.Name}
	}
	p.tasks[task.Name] = task
	return nil
}

// RegisterConfig converts and registers every task in the config,
// validating each definition on the way in.
func (p *TaskRegistry) RegisterConfig(c *ConfigDef) error {
	if err := c.Validate(); err != nil {
		return err
	}
	names := make([]string, 0, len(c.Tasks))
	for name := range c.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		task, err := c.Tasks[name].Task()
		if err != nil {
			return err
		}
		if err := p.Register(task); err != nil {
			return err
		}
	}
	return nil
}

func (p *TaskRegistry) Lookup(name string) (*Task, error) {
	task, exists := p.tasks[name]
	if !exists {
		return nil, &UnknownTaskError{Task: name}
	}
	return task, nil
}

func (p *TaskRegistry) Tasks() map[string]*Task {
	return p.tasks
}

func (p *TaskRegistry) TaskNames() []string {
	names := make([]string, 0, len(p.tasks))
	for name := range p.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package taskmk

import (
	log "github.com/sirupsen/logrus"
)

// Stage is one step of an execution plan: a set of tasks with no ordering
// constraint among themselves. Sequential tasks occupy singleton stages; a
// parallel alias contributes one multi-task stage that is joined in full
// before the plan proceeds.
type Stage struct {
	Tasks    []*Task
	Parallel bool
}

// Plan is the linearized result of expanding one requested task: every
// transitively required task exactly once, each stage only depending on
// stages before it.
type Plan struct {
	Stages []*Stage
}

// Order flattens the plan into task names, dependency-first.
func (p *Plan) Order() []string {
	names := []string{}
	for _, stage := range p.Stages {
		for _, task := range stage.Tasks {
			names = append(names, task.Name)
		}
	}
	return names
}

// GraphBuilder expands a requested task into a Plan by walking the
// dependency graph depth-first, visiting dependencies before the task
// itself. A per-traversal visiting set detects cycles; a visited set
// collapses diamond dependencies into a single occurrence.
type GraphBuilder struct {
	registry *TaskRegistry
	aliases  *AliasResolver
}

func NewGraphBuilder(registry *TaskRegistry) *GraphBuilder {
	return &GraphBuilder{
		registry: registry,
		aliases:  NewAliasResolver(registry),
	}
}

type expansion struct {
	builder  *GraphBuilder
	visiting map[string]bool
	visited  map[string]bool
	stack    []string
	stages   []*Stage
}

func (b *GraphBuilder) Expand(name string) (*Plan, error) {
	e := &expansion{
		builder:  b,
		visiting: map[string]bool{},
		visited:  map[string]bool{},
	}

	if err := e.visit(name, nil); err != nil {
		return nil, err
	}

	plan := &Plan{Stages: e.stages}

	log.WithFields(log.Fields{"task": name}).Debugf("expanded into %v", plan.Order())

	return plan, nil
}

func (e *expansion) visit(name string, group *[]*Task) error {
	if e.visited[name] {
		return nil
	}
	if e.visiting[name] {
		return &DependencyCycleError{Path: e.cyclePath(name)}
	}

	task, err := e.builder.registry.Lookup(name)
	if err != nil {
		return err
	}

	e.visiting[name] = true
	e.stack = append(e.stack, name)
	defer func() {
		delete(e.visiting, name)
		e.stack = e.stack[:len(e.stack)-1]
	}()

	if task.IsAlias() {
		// Resolving the chain up front reports pure alias cycles before
		// any dependency expansion happens below.
		if _, err := e.builder.aliases.Resolve(name); err != nil {
			return err
		}

		if task.Parallel && group == nil {
			siblings := []*Task{}
			for _, target := range task.AliasFor {
				if err := e.visit(target, &siblings); err != nil {
					return err
				}
			}
			if len(siblings) > 0 {
				if err := checkToolchainConflict(siblings); err != nil {
					return err
				}
				e.stages = append(e.stages, &Stage{Tasks: siblings, Parallel: len(siblings) > 1})
			}
		} else {
			for _, target := range task.AliasFor {
				// A sequential alias inside a parallel group keeps the
				// order of its own targets by expanding them into
				// singleton stages ahead of the group.
				var g *[]*Task
				if task.Parallel {
					g = group
				}
				if err := e.visit(target, g); err != nil {
					return err
				}
			}
		}
	} else {
		for _, dep := range task.Dependencies {
			if err := e.visit(dep, nil); err != nil {
				return err
			}
		}
		if group != nil {
			*group = append(*group, task)
		} else {
			e.stages = append(e.stages, &Stage{Tasks: []*Task{task}})
		}
	}

	e.visited[name] = true
	return nil
}

func (e *expansion) cyclePath(name string) []string {
	start := 0
	for i, n := range e.stack {
		if n == name {
			start = i
			break
		}
	}
	path := append([]string{}, e.stack[start:]...)
	return append(path, name)
}

// checkToolchainConflict rejects a parallel group whose members require
// different toolchains. This is a configuration error surfaced before any
// sibling is dispatched, never a race adjudicated at runtime.
func checkToolchainConflict(siblings []*Task) error {
	tasks := []string{}
	toolchains := []string{}
	seen := map[string]bool{}
	for _, task := range siblings {
		if task.Toolchain == "" {
			continue
		}
		tasks = append(tasks, task.Name)
		if !seen[task.Toolchain] {
			seen[task.Toolchain] = true
			toolchains = append(toolchains, task.Toolchain)
		}
	}
	if len(toolchains) > 1 {
		return &ToolchainConflictError{Tasks: tasks, Toolchains: toolchains}
	}
	return nil
}

package taskmk

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/taskmk/taskmk/pkg/util/envutil"
)

// TaskTemplate renders the value side of a task's env map. Values have
// access to the task name and the parent environment, plus the sprig
// function set.
type TaskTemplate struct {
	task   *Task
	values map[string]interface{}
}

func NewTaskTemplate(task *Task) *TaskTemplate {
	return &TaskTemplate{
		task: task,
		values: map[string]interface{}{
			"task": task.Name,
			"env":  envutil.ParseEnviron(),
		},
	}
}

func (t *TaskTemplate) Render(expr string, name string) (string, error) {
	tmpl := template.New(fmt.Sprintf("%s.env.%s", t.task.Name, name))
	tmpl.Option("missingkey=error")

	tmpl, err := tmpl.Funcs(sprig.TxtFuncMap()).Parse(expr)
	if err != nil {
		return "", errors.Wrapf(err, "failed parsing %s.env.%s", t.task.Name, name)
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, t.values); err != nil {
		return "", errors.Wrapf(err, "failed rendering %s.env.%s", t.task.Name, name)
	}

	return buff.String(), nil
}

// RenderEnv renders every value in the task's env map.
func (t *TaskTemplate) RenderEnv() (map[string]string, error) {
	rendered := map[string]string{}
	for name, expr := range t.task.Env {
		value, err := t.Render(expr, name)
		if err != nil {
			return nil, err
		}
		rendered[name] = value
	}
	return rendered, nil
}

package taskmk

import (
	"fmt"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// TaskDef is the declarative form of a single task as it appears in the
// task file. The yaml and mapstructure tags share names so that the YAML
// and TOML loaders decode into the same shape.
type TaskDef struct {
	Name         string            `yaml:"-" mapstructure:"-"`
	Description  string            `yaml:"description,omitempty" mapstructure:"description"`
	Dependencies []string          `yaml:"dependencies,omitempty" mapstructure:"dependencies"`
	Alias        AliasTargets      `yaml:"alias,omitempty" mapstructure:"alias"`
	Parallel     bool              `yaml:"parallel,omitempty" mapstructure:"parallel"`
	Command      string            `yaml:"command,omitempty" mapstructure:"command"`
	Args         []string          `yaml:"args,omitempty" mapstructure:"args"`
	Script       string            `yaml:"script,omitempty" mapstructure:"script"`
	Toolchain    string            `yaml:"toolchain,omitempty" mapstructure:"toolchain"`
	InstallTool  string            `yaml:"install_tool,omitempty" mapstructure:"install_tool"`
	Env          map[string]string `yaml:"env,omitempty" mapstructure:"env"`
}

// AliasTargets accepts both the scalar form (`alias: test`) and the list
// form (`alias: [test, lint]`) used to group tasks.
type AliasTargets []string

func (a *AliasTargets) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*a = AliasTargets{single}
		return nil
	}

	var many []string
	if err := unmarshal(&many); err != nil {
		return errors.Wrap(err, "alias must be a task name or a list of task names")
	}
	*a = AliasTargets(many)
	return nil
}

// SettingsDef holds run-wide defaults that flags may override.
type SettingsDef struct {
	Jobs         int  `yaml:"jobs,omitempty" mapstructure:"jobs"`
	AllowInstall bool `yaml:"allow_install,omitempty" mapstructure:"allow_install"`
}

// ConfigDef is the whole task file.
type ConfigDef struct {
	Tasks       map[string]*TaskDef          `yaml:"tasks" mapstructure:"tasks"`
	Toolchains  map[string]map[string]string `yaml:"toolchains,omitempty" mapstructure:"toolchains"`
	ToolSources map[string]string            `yaml:"tool_sources,omitempty" mapstructure:"tool_sources"`
	Settings    SettingsDef                  `yaml:"settings,omitempty" mapstructure:"settings"`
}

func NewDefaultConfigDef() *ConfigDef {
	return &ConfigDef{
		Tasks:       map[string]*TaskDef{},
		Toolchains:  map[string]map[string]string{},
		ToolSources: map[string]string{},
	}
}

// Validate enforces the alias-or-command invariant for every task: a pure
// alias carries no command or script, a runnable task carries exactly one
// of them, and a task carrying neither is invalid.
func (c *ConfigDef) Validate() error {
	for name, def := range c.Tasks {
		def.Name = name
		if err := def.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *TaskDef) validate() error {
	runnable := t.Command != "" || t.Script != ""
	switch {
	case len(t.Alias) > 0 && runnable:
		return &InvalidTaskError{Task: t.Name, Reason: "alias and command are mutually exclusive"}
	case len(t.Alias) > 0 && len(t.Dependencies) > 0:
		// Dependencies on an alias would be silently skipped during
		// expansion; rejecting the combination keeps that from becoming
		// a trap. Declare them on the alias targets instead.
		return &InvalidTaskError{Task: t.Name, Reason: "dependencies are not allowed on an alias; declare them on its targets"}
	case len(t.Alias) == 0 && !runnable:
		return &InvalidTaskError{Task: t.Name, Reason: "either alias or command is required"}
	case t.Command != "" && t.Script != "":
		return &InvalidTaskError{Task: t.Name, Reason: "command and script are mutually exclusive"}
	case t.Parallel && len(t.Alias) == 0:
		return &InvalidTaskError{Task: t.Name, Reason: "parallel is only meaningful on an alias"}
	}
	return nil
}

// Task converts the declarative definition into the runtime Task. The
// single-string script form is split into a command and argument vector
// here so the rest of the engine only ever sees the vector form.
func (t *TaskDef) Task() (*Task, error) {
	command := t.Command
	args := append([]string{}, t.Args...)

	if t.Script != "" {
		words, err := shellwords.Parse(t.Script)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse script of task %q", t.Name)
		}
		if len(words) == 0 {
			return nil, &InvalidTaskError{Task: t.Name, Reason: "script is empty"}
		}
		command = words[0]
		args = words[1:]
	}

	return &Task{
		Name:         t.Name,
		Description:  t.Description,
		Dependencies: append([]string{}, t.Dependencies...),
		AliasFor:     append([]string{}, t.Alias...),
		Parallel:     t.Parallel,
		Command:      command,
		Args:         args,
		Toolchain:    t.Toolchain,
		InstallTool:  t.InstallTool,
		Env:          t.Env,
	}, nil
}

func (t *TaskDef) String() string {
	if len(t.Alias) > 0 {
		return fmt.Sprintf("%s (alias of %v)", t.Name, []string(t.Alias))
	}
	return fmt.Sprintf("%s (%s)", t.Name, t.Command)
}

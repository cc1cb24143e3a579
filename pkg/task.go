package taskmk

// Task is a named unit of work loaded from the task file. It is either a
// pure alias standing for one or more other tasks, or a runnable external
// command. Tasks are immutable once registered.
type Task struct {
	Name         string
	Description  string
	Dependencies []string
	AliasFor     []string
	Parallel     bool
	Command      string
	Args         []string
	Toolchain    string
	InstallTool  string
	Env          map[string]string
}

func (t *Task) IsAlias() bool {
	return len(t.AliasFor) > 0
}

func (t *Task) Runnable() bool {
	return t.Command != ""
}

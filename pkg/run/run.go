package run

import (
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	taskmk "github.com/taskmk/taskmk/pkg"
	"github.com/taskmk/taskmk/pkg/util/envutil"
	"github.com/taskmk/taskmk/pkg/util/fileutil"
)

func init() {
	logrus.SetOutput(os.Stdout)

	verbose := false
	logtostderr := false
	for _, e := range os.Environ() {
		if strings.Contains(e, "VERBOSE=") {
			verbose = true
			break
		}
		if strings.Contains(e, "LOGTOSTDERR=") {
			logtostderr = true
			break
		}
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if logtostderr {
		logrus.SetOutput(os.Stderr)
	}
}

// Main locates the task file, loads it, and hands the remaining arguments
// to the engine. Called from the taskmk entry point.
func Main() {
	cmdName := path.Base(os.Args[0])
	args := os.Args[1:]

	if len(args) == 0 {
		envArgs, err := taskmk.ArgsFromEnvVars()
		if err != nil {
			logrus.Errorf("%+v", err)
			os.Exit(1)
		}
		if envArgs != nil {
			args = envArgs
		}
	}

	taskFile := "taskmk.yaml"
	if !fileutil.Exists(taskFile) && fileutil.Exists("taskmk.toml") {
		taskFile = "taskmk.toml"
	}

	environ := envutil.ParseEnviron()
	if environ["TASKMK_FILE"] != "" {
		taskFile = environ["TASKMK_FILE"]
	}

	config, err := taskmk.ReadConfigFromFile(taskFile)
	if err != nil {
		logrus.Errorf("%+v", err)
		os.Exit(1)
	}

	Config(config, taskmk.Opts{
		CommandName: cmdName,
		Args:        args,
		Log:         logrus.StandardLogger(),
	})
}

// Config runs the engine over an already loaded config, exiting the
// process with the failing task's own exit status when a task fails.
func Config(config *taskmk.ConfigDef, opts taskmk.Opts) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if len(opts.Args) == 0 {
		opts.Args = os.Args[1:]
	}

	log := opts.Log

	cobraApp, err := taskmk.Init(config, opts)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	if err := cobraApp.Run(opts.Args); err != nil {
		if execErr, ok := taskmk.AsTaskExecutionError(err); ok {
			if log.GetLevel() == logrus.DebugLevel {
				log.Errorf("Stack trace: %+v", errors.Trace(err))
			}
			log.Errorf("Error: task `%s` failed: %s", execErr.Task, err)
			status := execErr.ExitStatus
			if status < 1 {
				status = 1
			}
			os.Exit(status)
		}
		log.Errorf("Error: %s", err)
		os.Exit(1)
	}
}

package taskmk

import (
	"os"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// ArgsFromEnvVars lets CI systems inject the requested task via the
// TASKMK_RUN environment variable instead of command-line arguments.
// TASKMK_RUN_TRIM_PREFIX strips a leading prefix first, typically the
// binary name a webhook payload repeats. Returns nil when TASKMK_RUN is
// unset.
func ArgsFromEnvVars() ([]string, error) {
	return argsFromEnv(os.Getenv)
}

func argsFromEnv(getenv func(string) string) ([]string, error) {
	run := strings.TrimSpace(getenv("TASKMK_RUN"))
	if run == "" {
		return nil, nil
	}

	if prefix := getenv("TASKMK_RUN_TRIM_PREFIX"); prefix != "" {
		run = strings.TrimSpace(strings.TrimPrefix(run, prefix))
	}

	return shellwords.Parse(run)
}

package taskmk

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/taskmk/taskmk/pkg/util/fileutil"
)

type CobraApp struct {
	app      *Application
	viperCfg *viper.Viper
	cobraCmd *cobra.Command
}

func (a *CobraApp) Run(args []string) error {
	a.cobraCmd.SetArgs(args)
	return a.cobraCmd.Execute()
}

type Opts struct {
	CommandName string
	Args        []string
	Log         *logrus.Logger

	Runner CommandRunner

	ExtraCmds []*cobra.Command
}

const defaultToolDir = ".taskmk/tools"

// Init builds the whole engine for one invocation: the registry from the
// loaded config, the graph builder over it, the provisioner, and the
// cobra command tree that fronts them.
func Init(config *ConfigDef, opts ...Opts) (*CobraApp, error) {
	var o Opts
	if len(opts) == 0 {
		o = Opts{Args: []string{}}
	} else if len(opts) == 1 {
		o = opts[0]
	} else {
		return nil, fmt.Errorf("unexpected number of opts: %d", len(opts))
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	commandName := o.CommandName
	if commandName == "" {
		commandName = "taskmk"
	}

	taskRegistry := NewTaskRegistry()
	if err := taskRegistry.RegisterConfig(config); err != nil {
		return nil, errors.Trace(err)
	}

	v := viper.GetViper()

	p := &Application{
		Name:         commandName,
		Verbose:      false,
		Output:       "text",
		Colorize:     true,
		Jobs:         config.Settings.Jobs,
		TaskRegistry: taskRegistry,
		Graph:        NewGraphBuilder(taskRegistry),
		Runner:       o.Runner,
		Log:          log,
	}
	if p.Jobs < 1 {
		p.Jobs = 1
	}
	if p.Runner == nil {
		p.Runner = NewExecCommandRunner()
	}

	adapter := NewCobraAdapter(p)

	rootCmd := adapter.GenerateCommands()

	if len(o.ExtraCmds) > 0 {
		rootCmd.AddCommand(o.ExtraCmds...)
	}

	allowInstall := config.Settings.AllowInstall

	var flags *pflag.FlagSet = rootCmd.PersistentFlags()
	flags.BoolVarP(&(p.Verbose), "verbose", "v", false, "verbose output")
	flags.StringVarP(&(p.Output), "output", "o", "text", "Output format. One of: json|text|bunyan|message")
	flags.BoolVarP(&(p.Colorize), "color", "C", true, "Colorize output")
	flags.StringVarP(&(p.ConfigFile), "config-file", "c", "", "Path to config file")
	flags.BoolVar(&(p.LogToStderr), "logtostderr", true, "write log messages to stderr")
	flags.IntVarP(&(p.Jobs), "jobs", "j", p.Jobs, "Number of tasks a parallel group may run at once")
	flags.BoolVar(&allowInstall, "allow-install", allowInstall, "Allow installing missing tools over the network")

	v.BindPFlag("jobs", flags.Lookup("jobs"))
	v.BindPFlag("allow_install", flags.Lookup("allow-install"))

	// Set default log level.
	v.SetDefault("log_level", "info")
	v.SetDefault("tool_dir", defaultToolDir)

	// see `func ExecuteC` in https://github.com/spf13/cobra/blob/master/command.go for usage of ParseFlags()
	rootCmd.ParseFlags(o.Args)

	if p.ConfigFile != "" {
		v.SetConfigFile(p.ConfigFile)

		if err := v.MergeInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		v.SetConfigName(commandName)
		commonConfigFile := fmt.Sprintf("%s.settings.yaml", commandName)
		commonConfigMsg := fmt.Sprintf("loading config file %s...", commonConfigFile)
		if fileutil.Exists(commonConfigFile) {
			v.SetConfigName(fmt.Sprintf("%s.settings", commandName))
			if err := v.MergeInConfig(); err != nil {
				log.Errorf("%serror", commonConfigMsg)
				return nil, err
			}
			log.Debugf("%sdone", commonConfigMsg)
		} else {
			log.Debugf("%smissing", commonConfigMsg)
		}
	}

	// Set the environment prefix as app name
	v.SetEnvPrefix(strings.ToUpper(commandName))
	v.AutomaticEnv()

	// Substitute the . and - to _,
	replacer := strings.NewReplacer(".", "_", "-", "_")
	v.SetEnvKeyReplacer(replacer)

	// The bound keys may have been set through the environment or a
	// merged settings file; read them back so those sources take effect.
	p.Jobs = v.GetInt("jobs")
	if p.Jobs < 1 {
		p.Jobs = 1
	}
	allowInstall = v.GetBool("allow_install")

	p.Provisioner = NewProvisioner(config, v.GetString("tool_dir"), allowInstall)

	// We want logging configured via command-line options before the rootCmd is run
	if err := p.UpdateLoggingConfiguration(); err != nil {
		return nil, err
	}

	return &CobraApp{
		app:      p,
		viperCfg: v,
		cobraCmd: rootCmd,
	}, nil
}

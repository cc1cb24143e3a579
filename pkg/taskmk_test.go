package taskmk

import (
	"os"
	"testing"
)

func TestInitReadsSettingsFromEnvironment(t *testing.T) {
	os.Setenv("TASKMK_JOBS", "5")
	os.Setenv("TASKMK_ALLOW_INSTALL", "true")
	defer os.Unsetenv("TASKMK_JOBS")
	defer os.Unsetenv("TASKMK_ALLOW_INSTALL")

	config, err := ReadConfigFromString(minimalConfigYaml)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	cobraApp, err := Init(config, Opts{CommandName: "taskmk", Args: []string{}})
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	if cobraApp.app.Jobs != 5 {
		t.Errorf("expected TASKMK_JOBS to take effect, got jobs=%d", cobraApp.app.Jobs)
	}
	if !cobraApp.app.Provisioner.allowInstall {
		t.Errorf("expected TASKMK_ALLOW_INSTALL to take effect")
	}
}

func TestInitDefaultsWithoutEnvironment(t *testing.T) {
	os.Unsetenv("TASKMK_JOBS")
	os.Unsetenv("TASKMK_ALLOW_INSTALL")

	config, err := ReadConfigFromString(minimalConfigYaml)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	config.Settings.Jobs = 3

	cobraApp, err := Init(config, Opts{CommandName: "taskmk", Args: []string{}})
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	// The task file's settings block stays in force when nothing
	// overrides it.
	if cobraApp.app.Jobs != 3 {
		t.Errorf("expected jobs from the task file settings, got %d", cobraApp.app.Jobs)
	}
	if cobraApp.app.Provisioner.allowInstall {
		t.Errorf("expected installs to stay disallowed")
	}
}

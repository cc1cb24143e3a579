package stringutil

import (
	"regexp"
	"strings"

	"github.com/huandu/xstrings"
)

var (
	regex       = regexp.MustCompile(`-([0-9]+)`)
	envReplacer = strings.NewReplacer("-", "_", ".", "_")
)

// ToEnvironmentName turns a task name like "coverage-html" into the
// environment variable form COVERAGE_HTML.
func ToEnvironmentName(name string) string {
	n := strings.Trim(regex.ReplaceAllString(xstrings.ToKebabCase(name), "$1-"), "-")
	return strings.ToUpper(envReplacer.Replace(n))
}

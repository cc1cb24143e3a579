package main

import (
	"github.com/taskmk/taskmk/pkg/run"
)

func main() {
	run.Main()
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"skillfit": func() int { main(); return 0 },
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "script"),
		Setup: func(env *testscript.Env) error {
			env.Setenv("SKILLFIT_BASE_PATH", filepath.Join(env.WorkDir, "state"))
			env.Setenv("SKILLFIT_COLOR", "never")
			return nil
		},
	})
}

// File: cmd/sitepilot/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sitepilot/cmd"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(context.Canceled))
	assert.Equal(t, 0, exitCode(errors.Join(errors.New("sitepilot"), context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() {
		osExit = os.Exit
		osWriteFile = os.WriteFile
	})
	return &code
}

func TestHandlePanic_WritesLog(t *testing.T) {
	code := stubExit(t)
	var written []byte
	var name string
	osWriteFile = func(n string, data []byte, perm os.FileMode) error {
		name, written = n, data
		return nil
	}

	func() {
		defer handlePanic()
		panic("adapter exploded")
	}()

	assert.Equal(t, 2, *code)
	assert.Equal(t, panicLogFile, name)
	assert.Contains(t, string(written), "panic: adapter exploded")
	assert.Contains(t, string(written), "goroutine")
}

func TestHandlePanic_LogWriteFails(t *testing.T) {
	code := stubExit(t)
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }

	func() {
		defer handlePanic()
		panic("again")
	}()
	assert.Equal(t, 2, *code)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	code := stubExit(t)
	func() {
		defer handlePanic()
	}()
	assert.Equal(t, -1, *code)
}

func TestMain_ExitsWithCommandResult(t *testing.T) {
	code := stubExit(t)
	execute = func(context.Context) error { return errors.New("bad args") }
	t.Cleanup(func() { execute = cmd.Execute })

	main()
	require.Equal(t, 1, *code)
}

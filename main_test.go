package main

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePanic(t *testing.T) {
	t.Cleanup(func() {
		osExit = os.Exit
		osWriteFile = os.WriteFile
	})

	var code int
	var written string
	osExit = func(c int) { code = c }
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		written = string(data)
		return nil
	}

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, code)
	assert.Contains(t, written, "panic: boom")

	code = 0
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only") }
	func() {
		defer handlePanic()
		panic("again")
	}()
	assert.Equal(t, 1, code)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	called := false
	osExit = func(int) { called = true }
	t.Cleanup(func() { osExit = os.Exit })

	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStartError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      errors.ErrorType
		wantTransient bool
	}{
		{
			name:          "missing_binary_is_permanent",
			err:           &os.PathError{Op: "fork/exec", Path: "/no/such/bin", Err: syscall.ENOENT},
			wantType:      errors.ErrorTypeProcess,
			wantTransient: false,
		},
		{
			name:          "permission_denied_is_permanent",
			err:           &os.PathError{Op: "fork/exec", Path: "/etc/shadow", Err: syscall.EACCES},
			wantType:      errors.ErrorTypePermission,
			wantTransient: false,
		},
		{
			name:          "resource_exhaustion_is_transient",
			err:           &os.PathError{Op: "fork/exec", Path: "/bin/true", Err: syscall.EAGAIN},
			wantType:      errors.ErrorTypeProcess,
			wantTransient: true,
		},
		{
			name:          "out_of_memory_is_transient",
			err:           &os.SyscallError{Syscall: "fork", Err: syscall.ENOMEM},
			wantType:      errors.ErrorTypeProcess,
			wantTransient: true,
		},
		{
			name:          "unknown_failure_stays_retryable",
			err:           fmt.Errorf("something odd"),
			wantType:      errors.ErrorTypeProcess,
			wantTransient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyStartError(tt.err)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.wantTransient, errors.IsTransientError(classified))
		})
	}
}

func TestOpenProcessByPIDFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("attaches_to_running_process", func(t *testing.T) {
		// Our own PID is guaranteed alive
		pidFile := filepath.Join(dir, "self.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644))

		process, err := openProcessByPIDFile(pidFile)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), process.Pid)
	})

	t.Run("rejects_empty_pid_file", func(t *testing.T) {
		pidFile := filepath.Join(dir, "empty.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("  \n"), 0644))

		_, err := openProcessByPIDFile(pidFile)
		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("rejects_garbage_pid", func(t *testing.T) {
		pidFile := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid\n"), 0644))

		_, err := openProcessByPIDFile(pidFile)
		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("missing_file_is_io_error", func(t *testing.T) {
		_, err := openProcessByPIDFile(filepath.Join(dir, "absent.pid"))
		assert.Error(t, err)
		assert.True(t, errors.IsIOError(err))
	})
}

func TestEnsureExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("execute bits are not meaningful on Windows")
	}

	dir := t.TempDir()

	path := filepath.Join(dir, "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0644))

	require.NoError(t, ensureExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111)

	// Missing files are IO errors
	err = ensureExecutable(filepath.Join(dir, "absent"))
	assert.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

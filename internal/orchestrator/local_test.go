package orchestrator

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/onvifscout/scout-release/internal/service"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears names for the test and restores them afterwards.
func unsetEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func newLocalRunner(t *testing.T, dotenv string) (*LocalRunner, *mockSemanticRelease, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/onvifscout/src", 0o755))
	if dotenv != "" {
		require.NoError(t, afero.WriteFile(fs, "/work/onvifscout/.env", []byte(dotenv), 0o600))
	}
	sr := new(mockSemanticRelease)
	var stdout, stderr bytes.Buffer
	r := NewLocalRunner(fs, sr, "/work/onvifscout/src", nil)
	r.SetOutput(&stdout, &stderr)
	return r, sr, &stdout, &stderr
}

func TestLocalRunner_Execute(t *testing.T) {
	t.Run("Should load .env from a parent directory and run the command", func(t *testing.T) {
		// Arrange
		unsetEnv(t, "GH_TOKEN", "PYPI_TOKEN")
		r, sr, stdout, stderr := newLocalRunner(t, "GH_TOKEN=ghp_local\nPYPI_TOKEN=pypi-local\n")
		sr.On("Run", mock.Anything, []string{"version", "--print"}).
			Return(service.Result{Stdout: "1.3.0\n"}, nil)

		// Act
		code, err := r.Execute(context.Background(), "version", "--print")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Equal(t, "ghp_local", os.Getenv("GH_TOKEN"))
		assert.Equal(t, "Running: semantic-release version --print\n1.3.0\nRelease process completed successfully\n",
			stdout.String())
		assert.Empty(t, stderr.String())
	})

	t.Run("Should keep variables already set in the shell", func(t *testing.T) {
		t.Setenv("GH_TOKEN", "ghp_shell")
		unsetEnv(t, "PYPI_TOKEN")
		r, sr, _, _ := newLocalRunner(t, "GH_TOKEN=ghp_file\nPYPI_TOKEN=pypi-file\n")
		sr.On("Run", mock.Anything, []string{"changelog"}).Return(service.Result{}, nil)

		_, err := r.Execute(context.Background(), "changelog")

		require.NoError(t, err)
		assert.Equal(t, "ghp_shell", os.Getenv("GH_TOKEN"))
	})

	t.Run("Should fail without a .env file", func(t *testing.T) {
		r, sr, _, _ := newLocalRunner(t, "")

		code, err := r.Execute(context.Background(), "version")

		require.Error(t, err)
		assert.Equal(t, 1, code)
		assert.Contains(t, err.Error(), "no .env file found")
		sr.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("Should name missing tokens", func(t *testing.T) {
		unsetEnv(t, "GH_TOKEN", "PYPI_TOKEN")
		r, sr, _, _ := newLocalRunner(t, "GH_TOKEN=ghp_local\n")

		code, err := r.Execute(context.Background(), "publish")

		require.Error(t, err)
		assert.Equal(t, 1, code)
		assert.Contains(t, err.Error(), "PYPI_TOKEN")
		assert.NotContains(t, err.Error(), "GH_TOKEN,")
		sr.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("Should reject unknown commands", func(t *testing.T) {
		unsetEnv(t, "GH_TOKEN", "PYPI_TOKEN")
		r, _, _, _ := newLocalRunner(t, "GH_TOKEN=a\nPYPI_TOKEN=b\n")

		code, err := r.Execute(context.Background(), "deploy")

		require.Error(t, err)
		assert.Equal(t, 1, code)
		assert.Contains(t, err.Error(), "changelog, version, publish")
	})

	t.Run("Should propagate the tool exit code and print stderr", func(t *testing.T) {
		unsetEnv(t, "GH_TOKEN", "PYPI_TOKEN")
		r, sr, stdout, stderr := newLocalRunner(t, "GH_TOKEN=a\nPYPI_TOKEN=b\n")
		sr.On("Run", mock.Anything, []string{"publish"}).
			Return(service.Result{Stderr: "upload rejected\n", ExitCode: 3}, nil)

		code, err := r.Execute(context.Background(), "publish")

		require.Error(t, err)
		assert.Equal(t, 3, code)
		var exitErr *service.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.Code)
		assert.Equal(t, "Warnings/Errors:\nupload rejected\n", stderr.String())
		assert.NotContains(t, stdout.String(), "completed successfully")
	})
}

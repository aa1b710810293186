package internal

import (
	"fmt"
	"os"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg *AppConfig) *ActiveApp {
	wrapped := Config{Apps: []AppConfig{*cfg}}
	applyDefaults(&wrapped)
	logger, _ := logtest.NewNullLogger()
	return NewActiveApp(1, &wrapped.Apps[0], logger)
}

func TestArgsStockInvocation(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})

	require.Equal(t,
		[]string{"run", "app.py", "--server.address", "localhost", "--server.port", "8501"},
		app.Args())
}

func TestArgsHeadlessAndExtras(t *testing.T) {
	app := newTestApp(&AppConfig{
		AppDir:    "/srv/nfm",
		Entry:     "main.py",
		Address:   "0.0.0.0",
		Port:      9000,
		Headless:  true,
		ExtraArgs: []string{"--theme.base", "dark"},
	})

	require.Equal(t,
		[]string{
			"run", "main.py",
			"--server.address", "0.0.0.0",
			"--server.port", "9000",
			"--server.headless", "true",
			"--theme.base", "dark",
		},
		app.Args())
}

func TestExecutableResolvesVenv(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})
	require.Equal(t, "streamlit", app.Executable())

	app = newTestApp(&AppConfig{AppDir: "/srv/nfm", VenvDir: "/srv/nfm/venv"})
	require.Equal(t, VenvExecutable("/srv/nfm/venv", "streamlit"), app.Executable())
}

func TestEnvironActivatesVenv(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm", VenvDir: "/srv/nfm/venv"})

	base := []string{
		"PATH=/usr/local/bin:/usr/bin",
		"PYTHONHOME=/usr/lib/python",
		"VIRTUAL_ENV=/somewhere/else",
		"HOME=/home/acer",
	}
	env := app.environ(base)

	expectedPath := "PATH=" + VenvBinDir("/srv/nfm/venv") + string(os.PathListSeparator) + "/usr/local/bin:/usr/bin"
	require.Contains(t, env, expectedPath)
	require.Contains(t, env, "VIRTUAL_ENV=/srv/nfm/venv")
	require.Contains(t, env, "HOME=/home/acer")
	for _, kv := range env {
		require.False(t, strings.HasPrefix(kv, "PYTHONHOME="), "PYTHONHOME should have been removed, got %s", kv)
	}
}

func TestEnvironUntouchedWithoutVenv(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})

	base := []string{"PATH=/usr/bin", "PYTHONHOME=/usr/lib/python"}
	require.Equal(t, base, app.environ(base))
}

func TestEnvironAppliesOverrides(t *testing.T) {
	app := newTestApp(&AppConfig{
		AppDir: "/srv/nfm",
		Env:    map[string]string{"NFM_DATA_DIR": "/data", "HOME": "/srv/nfm"},
	})

	env := app.environ([]string{"HOME=/home/acer", "PATH=/usr/bin"})
	require.Contains(t, env, "NFM_DATA_DIR=/data")
	require.Contains(t, env, "HOME=/srv/nfm")
	require.NotContains(t, env, "HOME=/home/acer")
	require.Contains(t, env, "PATH=/usr/bin")
}

func TestCommandRunsInAppDir(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})
	require.Equal(t, "/srv/nfm", app.Command().Dir)
}

func TestProcessLineDetectsReadyBanner(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})

	require.False(t, app.Ready())
	app.processLine("  You can now view your Streamlit app in your browser.\n", nil)
	require.True(t, app.Ready())
	require.Equal(t, AppRunning, app.currentState())

	app.processLine("  Local URL: http://localhost:8501\n", nil)
	require.Equal(t, "http://localhost:8501", app.URL)
}

func TestSnapshotIsIsolatedFromOutput(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})

	app.processLine("  Local URL: http://localhost:8501\n", nil)
	snap := app.snapshot()

	app.processLine("  Reloading...\n", nil)
	app.processLine("  Local URL: http://localhost:9000\n", nil)

	require.Len(t, snap.Tail, 1)
	require.Equal(t, "http://localhost:8501", snap.URL)
	require.Equal(t, "nfm", snap.Name)
	require.Len(t, app.Tail, 3)
}

func TestProcessLineBoundsTail(t *testing.T) {
	app := newTestApp(&AppConfig{AppDir: "/srv/nfm"})

	for i := 0; i < tailSize+5; i++ {
		app.processLine(fmt.Sprintf("line %d\n", i), nil)
	}
	require.Len(t, app.Tail, tailSize)
	require.Equal(t, "line 5\n", app.Tail[0])
	require.Equal(t, fmt.Sprintf("line %d\n", tailSize+4), app.Tail[tailSize-1])
}

package internal

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestProcessConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchng.json")
	writeConfig(t, path, `{"Apps": [{"AppDir": "/srv/nfm"}]}`, time.Now())

	logger, _ := logtest.NewNullLogger()
	lc := NewLaunchConfig(path, logger)
	require.True(t, lc.ProcessConfig())

	cfg := lc.CurrentConfig
	require.Equal(t, 10, cfg.CheckIntervalSecs)
	require.Equal(t, 5, cfg.RestartDelaySecs)
	require.Len(t, cfg.Apps, 1)
	require.Equal(t, "nfm", cfg.Apps[0].Name)
	require.Equal(t, "app.py", cfg.Apps[0].Entry)
	require.Equal(t, "localhost", cfg.Apps[0].Address)
	require.Equal(t, 8501, cfg.Apps[0].Port)
}

func TestProcessConfigReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchng.json")
	base := time.Now().Add(-time.Minute)
	writeConfig(t, path, `{"Apps": [{"AppDir": "/srv/nfm"}]}`, base)

	logger, _ := logtest.NewNullLogger()
	lc := NewLaunchConfig(path, logger)
	require.True(t, lc.ProcessConfig())

	// unchanged file does not reload
	require.False(t, lc.ProcessConfig())

	writeConfig(t, path, `{"Apps": [{"AppDir": "/srv/nfm", "Port": 9000}]}`, base.Add(time.Second))
	require.True(t, lc.ProcessConfig())
	require.Equal(t, 9000, lc.CurrentConfig.Apps[0].Port)
}

func TestProcessConfigKeepsPreviousOnBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchng.json")
	base := time.Now().Add(-time.Minute)
	writeConfig(t, path, `{"Apps": [{"AppDir": "/srv/nfm"}]}`, base)

	logger, _ := logtest.NewNullLogger()
	lc := NewLaunchConfig(path, logger)
	require.True(t, lc.ProcessConfig())

	writeConfig(t, path, `{"Apps": [`, base.Add(time.Second))
	require.False(t, lc.ProcessConfig())
	require.NotNil(t, lc.CurrentConfig)
	require.Equal(t, "/srv/nfm", lc.CurrentConfig.Apps[0].AppDir)
}

func TestProcessConfigMissingFile(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	lc := NewLaunchConfig(filepath.Join(t.TempDir(), "absent.json"), logger)
	require.False(t, lc.ProcessConfig())
	require.Nil(t, lc.CurrentConfig)
}

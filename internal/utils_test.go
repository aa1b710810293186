package internal

import (
	"math"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationString(t *testing.T) {
	require.Equal(t, "00:00:00", DurationString(0))
	require.Equal(t, "00:01:05", DurationString(65*time.Second))
	require.Equal(t, "26:03:04", DurationString(26*time.Hour+3*time.Minute+4*time.Second))
}

func TestSpaceString(t *testing.T) {
	require.Equal(t, "???", SpaceString(math.MaxUint64))
	require.Equal(t, "512 MiB", SpaceString(512*MB))
	require.Equal(t, "5 GiB", SpaceString(5*GB))
	require.Equal(t, "2.00 TiB", SpaceString(2*TB))
}

func TestVenvLayout(t *testing.T) {
	if runtime.GOOS == "windows" {
		require.Equal(t, filepath.Join("venv", "Scripts"), VenvBinDir("venv"))
		require.Equal(t, filepath.Join("venv", "Scripts", "streamlit.exe"), VenvExecutable("venv", "streamlit"))
		return
	}
	require.Equal(t, filepath.Join("venv", "bin"), VenvBinDir("venv"))
	require.Equal(t, filepath.Join("venv", "bin", "streamlit"), VenvExecutable("venv", "streamlit"))
}

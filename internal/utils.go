package internal

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"time"
)

const KB = uint64(1024)
const MB = KB * KB
const GB = KB * KB * KB
const TB = KB * GB

func DurationString(d time.Duration) string {
	hour := d / time.Hour
	d = d - hour*(60*60*1e9)
	mins := d / time.Minute
	d = d - mins*(60*1e9)
	secs := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", hour, mins, secs)
}

func SpaceString(s uint64) string {
	if s == math.MaxUint64 {
		return "???"
	}
	if s > 1000*GB {
		return fmt.Sprintf("%0.2f TiB", float64(s)/float64(TB))
	}
	if s < GB {
		return fmt.Sprintf("%d MiB", s/MB)
	}
	return fmt.Sprintf("%d GiB", s/GB)
}

// VenvBinDir returns the directory a virtualenv keeps its executables in.
func VenvBinDir(venvDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts")
	}
	return filepath.Join(venvDir, "bin")
}

// VenvExecutable resolves the path of an executable inside a virtualenv.
func VenvExecutable(venvDir, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(VenvBinDir(venvDir), name)
}

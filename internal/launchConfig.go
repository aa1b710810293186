package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults matching the stock launcher invocation.
const (
	DefaultEntry   = "app.py"
	DefaultAddress = "localhost"
	DefaultPort    = 8501
)

// AppConfig describes one Streamlit application to keep running.
type AppConfig struct {
	Name      string
	AppDir    string
	Entry     string
	VenvDir   string
	Address   string
	Port      int
	Headless  bool
	ExtraArgs []string
	Env       map[string]string
	DataDirs  []string
}

type Config struct {
	Apps              []AppConfig
	CheckIntervalSecs int
	RestartDelaySecs  int
	MaxRestarts       int
	MinFreeSpaceGB    uint64
	ShowAppLog        bool
	SaveAppLogDir     string
}

// LaunchConfig reloads the JSON configuration whenever the file's
// modification time changes.
type LaunchConfig struct {
	ConfigPath    string
	CurrentConfig *Config
	LastMod       time.Time
	Lock          sync.RWMutex

	logger *logrus.Logger
}

func NewLaunchConfig(configPath string, logger *logrus.Logger) *LaunchConfig {
	return &LaunchConfig{
		ConfigPath: configPath,
		logger:     logger,
	}
}

// ProcessConfig checks the config file for changes and reloads it,
// returning true when a new configuration was loaded. A file that fails
// to parse keeps the previous configuration in place.
func (lc *LaunchConfig) ProcessConfig() bool {
	fs, err := os.Lstat(lc.ConfigPath)
	if err != nil {
		lc.logger.Errorf("failed to open config file [%s]: %s", lc.ConfigPath, err)
		return false
	}
	if lc.LastMod == fs.ModTime() {
		return false
	}
	lc.LastMod = fs.ModTime()

	f, err := os.Open(lc.ConfigPath)
	if err != nil {
		lc.logger.Errorf("failed to open config file [%s]: %s", lc.ConfigPath, err)
		return false
	}
	defer f.Close()

	var newConfig Config
	if err := json.NewDecoder(f).Decode(&newConfig); err != nil {
		lc.logger.Errorf("failed to process config file [%s]: %s", lc.ConfigPath, err)
		return false
	}
	applyDefaults(&newConfig)

	lc.Lock.Lock()
	lc.CurrentConfig = &newConfig
	lc.Lock.Unlock()
	lc.logger.Info("new configuration loaded")
	return true
}

func applyDefaults(cfg *Config) {
	if cfg.CheckIntervalSecs <= 0 {
		cfg.CheckIntervalSecs = 10
	}
	if cfg.RestartDelaySecs <= 0 {
		cfg.RestartDelaySecs = 5
	}
	for i := range cfg.Apps {
		app := &cfg.Apps[i]
		if len(app.Entry) == 0 {
			app.Entry = DefaultEntry
		}
		if len(app.Address) == 0 {
			app.Address = DefaultAddress
		}
		if app.Port == 0 {
			app.Port = DefaultPort
		}
		if len(app.Name) == 0 {
			app.Name = filepath.Base(app.AppDir)
		}
	}
}

package internal

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ricochet2200/go-disk-usage/du"
	"github.com/sirupsen/logrus"
)

// Server keeps the configured Streamlit apps running and serves their
// status to monitor clients.
type Server struct {
	config    *LaunchConfig
	logger    *logrus.Logger
	active    map[int64]*ActiveApp
	archive   []*ActiveApp
	restartAt map[string]time.Time
	restarts  map[string]int
	suspended map[string]bool
	lock      sync.RWMutex

	// injectable for tests
	probePort func(address string, port int) error
	diskSpace func(path string) uint64
}

func NewServer(logger *logrus.Logger) *Server {
	return &Server{
		logger:    logger,
		active:    map[int64]*ActiveApp{},
		restartAt: map[string]time.Time{},
		restarts:  map[string]int{},
		suspended: map[string]bool{},
		probePort: probePort,
		diskSpace: diskSpaceAvailable,
	}
}

func (server *Server) ProcessLoop(configPath string, address string, port int) {
	gob.Register(Msg{})
	gob.Register(ActiveApp{})
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", address, port), server); err != nil {
			server.logger.Fatalf("failed to start status server: %s", err)
		}
	}()

	server.config = NewLaunchConfig(configPath, server.logger)
	server.supervise(time.Now())
	interval := 10 * time.Second
	if server.config.CurrentConfig != nil {
		interval = time.Duration(server.config.CurrentConfig.CheckIntervalSecs) * time.Second
	}
	ticker := time.NewTicker(interval)
	for t := range ticker.C {
		server.supervise(t)
	}
}

func (server *Server) supervise(t time.Time) {
	if server.config.ProcessConfig() {
		// new config wipes restart bookkeeping, killed apps included
		server.lock.Lock()
		server.restartAt = map[string]time.Time{}
		server.restarts = map[string]int{}
		server.suspended = map[string]bool{}
		server.lock.Unlock()
	}
	if server.config.CurrentConfig == nil {
		return
	}

	server.config.Lock.RLock()
	cfg := server.config.CurrentConfig
	server.config.Lock.RUnlock()

	server.lock.Lock()
	server.sweepExited(cfg, t)
	running := map[string]bool{}
	for _, app := range server.active {
		running[app.Name] = true
	}
	for i := range cfg.Apps {
		appCfg := &cfg.Apps[i]
		if running[appCfg.Name] {
			continue
		}
		if err := server.canLaunch(cfg, appCfg, t); err != nil {
			server.logger.WithField("app", appCfg.Name).Infof("skipping launch: %s", err)
			continue
		}
		server.launch(cfg, appCfg)
	}
	server.logger.Infof("%s, %d active apps", t.Format("2006-01-02 15:04:05"), len(server.active))
	for _, app := range server.active {
		server.logger.Info(app.String(cfg.ShowAppLog))
	}
	server.lock.Unlock()
}

func (server *Server) sweepExited(cfg *Config, t time.Time) {
	for id, app := range server.active {
		state := app.currentState()
		if state != AppStopped && state != AppErrored && state != AppKilled {
			continue
		}
		server.archive = append(server.archive, app)
		delete(server.active, id)
		if state == AppKilled {
			server.suspended[app.Name] = true
			continue
		}
		server.restarts[app.Name]++
		server.restartAt[app.Name] = t.Add(time.Duration(cfg.RestartDelaySecs) * time.Second)
	}
}

// canLaunch decides whether an app may be (re)launched now. It is pure
// over the injected probes so it can be tested without processes.
func (server *Server) canLaunch(cfg *Config, appCfg *AppConfig, now time.Time) error {
	if len(appCfg.AppDir) == 0 {
		return errors.New("configuration lacks an app directory")
	}
	if server.suspended[appCfg.Name] {
		return errors.New("killed, waiting for config reload")
	}
	if cfg.MaxRestarts > 0 && server.restarts[appCfg.Name] > cfg.MaxRestarts {
		return errors.Errorf("restart budget exhausted after %d attempts", server.restarts[appCfg.Name])
	}
	if until, found := server.restartAt[appCfg.Name]; found && now.Before(until) {
		return errors.Errorf("waiting until %s", until.Format("2006-01-02 15:04:05"))
	}
	if err := server.probePort(appCfg.Address, appCfg.Port); err != nil {
		return err
	}
	if cfg.MinFreeSpaceGB > 0 {
		for _, dir := range appCfg.DataDirs {
			if free := server.diskSpace(dir); free < cfg.MinFreeSpaceGB*GB {
				return errors.Errorf("not enough space in [%s]: %d GiB free", dir, free/GB)
			}
		}
	}
	return nil
}

func (server *Server) launch(cfg *Config, appCfg *AppConfig) {
	app := NewActiveApp(time.Now().UnixNano(), appCfg, server.logger)
	app.Restarts = server.restarts[appCfg.Name]
	app.SaveAppLogDir = cfg.SaveAppLogDir
	server.active[app.AppID] = app
	go app.Run()
}

func probePort(address string, port int) error {
	l, err := net.Listen("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return errors.Wrapf(err, "port %d already in use", port)
	}
	l.Close()
	return nil
}

func diskSpaceAvailable(path string) uint64 {
	return du.NewDiskUsage(path).Available()
}

func (server *Server) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	server.logger.Infof("new query: %s - %s", req.Method, req.URL.String())

	switch req.Method {
	case http.MethodGet:
		server.lock.RLock()
		msg := server.statusMsg()
		server.lock.RUnlock()

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
			resp.WriteHeader(http.StatusInternalServerError)
			server.logger.Errorf("failed to encode message: %s", err)
			return
		}
		resp.WriteHeader(http.StatusOK)
		resp.Write(buf.Bytes())
	case http.MethodDelete:
		server.lock.Lock()
		for _, app := range server.active {
			if req.URL.Path == "/"+strconv.FormatInt(app.AppID, 10) {
				if err := app.Kill(); err != nil {
					server.logger.WithField("app", app.Name).Errorf("failed to kill: %s", err)
				}
				server.suspended[app.Name] = true
			}
		}
		server.lock.Unlock()
	}
}

func (server *Server) statusMsg() Msg {
	var msg Msg
	msg.DataDirs = map[string]uint64{}
	for _, app := range server.active {
		msg.Actives = append(msg.Actives, app.snapshot())
	}
	for _, app := range server.archive {
		msg.Archived = append(msg.Archived, app.snapshot())
	}
	if server.config != nil && server.config.CurrentConfig != nil {
		for _, appCfg := range server.config.CurrentConfig.Apps {
			for _, dir := range appCfg.DataDirs {
				msg.DataDirs[dir] = server.diskSpace(dir)
			}
		}
	}
	return msg
}

// Msg is the gob payload served to monitor clients.
type Msg struct {
	Actives  []*ActiveApp
	Archived []*ActiveApp
	DataDirs map[string]uint64
}

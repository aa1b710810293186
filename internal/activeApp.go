package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	AppStarting = iota
	AppRunning
	AppStopped
	AppErrored
	AppKilled
)

const tailSize = 20

// streamlit prints these when the server is up and serving.
const (
	bannerReady    = "You can now view your Streamlit app in your browser."
	bannerLocalURL = "Local URL:"
)

// ActiveApp is a single managed Streamlit instance. The exported fields
// travel over the wire to the monitor client, runtime-only state stays
// unexported.
type ActiveApp struct {
	AppID     int64
	Name      string
	AppDir    string
	Entry     string
	VenvDir   string
	Address   string
	Port      int
	Headless  bool
	ExtraArgs []string
	Env       map[string]string

	StartTime time.Time
	EndTime   time.Time
	ReadyTime time.Time
	URL       string
	State     int
	ExitCode  int
	Restarts  int
	Tail      []string

	SaveAppLogDir string

	logger  *logrus.Logger
	lock    sync.RWMutex
	process *os.Process
	killed  bool
	echo    io.Writer
}

// NewActiveApp builds an instance from an app's configuration. The id
// doubles as the launch timestamp.
func NewActiveApp(id int64, cfg *AppConfig, logger *logrus.Logger) *ActiveApp {
	return &ActiveApp{
		AppID:     id,
		Name:      cfg.Name,
		AppDir:    cfg.AppDir,
		Entry:     cfg.Entry,
		VenvDir:   cfg.VenvDir,
		Address:   cfg.Address,
		Port:      cfg.Port,
		Headless:  cfg.Headless,
		ExtraArgs: cfg.ExtraArgs,
		Env:       cfg.Env,
		State:     AppStarting,
		logger:    logger,
	}
}

// SetEcho mirrors the child's output to w, used by the foreground mode.
func (app *ActiveApp) SetEcho(w io.Writer) {
	app.echo = w
}

func (app *ActiveApp) Duration(currentTime time.Time) string {
	return DurationString(currentTime.Sub(app.StartTime))
}

func StateString(state int) string {
	switch state {
	case AppStarting:
		return "Starting"
	case AppRunning:
		return "Running"
	case AppStopped:
		return "Stopped"
	case AppErrored:
		return "Errored"
	case AppKilled:
		return "Killed"
	}
	return "Unknown"
}

func (app *ActiveApp) String(showLog bool) string {
	app.lock.RLock()
	s := fmt.Sprintf("App [%s] - %s, URL: %s, Start Time: %s, Duration: %s, Dir: %s\n",
		app.Name, StateString(app.State), app.URL,
		app.StartTime.Format("2006-01-02 15:04:05"), app.Duration(time.Now()), app.AppDir)
	if showLog {
		for _, l := range app.Tail {
			s += fmt.Sprintf("\t%s", l)
		}
	}
	app.lock.RUnlock()
	return s
}

// Executable resolves the streamlit binary. With a virtualenv configured
// the venv's own binary is used, which is what activation would put
// first on PATH.
func (app *ActiveApp) Executable() string {
	if len(app.VenvDir) > 0 {
		return VenvExecutable(app.VenvDir, "streamlit")
	}
	return "streamlit"
}

// Args builds the streamlit argv, minus the executable itself.
func (app *ActiveApp) Args() []string {
	args := []string{
		"run", app.Entry,
		"--server.address", app.Address,
		"--server.port", strconv.Itoa(app.Port),
	}
	if app.Headless {
		args = append(args, "--server.headless", "true")
	}
	args = append(args, app.ExtraArgs...)
	return args
}

// Environ builds the child environment. A configured virtualenv is
// activated the way its activate script would: VIRTUAL_ENV set, the venv
// bin dir first on PATH, PYTHONHOME removed.
func (app *ActiveApp) Environ() []string {
	return app.environ(os.Environ())
}

func (app *ActiveApp) environ(base []string) []string {
	if len(app.VenvDir) == 0 && len(app.Env) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(app.Env)+1)
	for _, kv := range base {
		key := strings.SplitN(kv, "=", 2)[0]
		if len(app.VenvDir) > 0 {
			if strings.EqualFold(key, "PYTHONHOME") || strings.EqualFold(key, "VIRTUAL_ENV") {
				continue
			}
			if strings.EqualFold(key, "PATH") {
				kv = key + "=" + VenvBinDir(app.VenvDir) + string(os.PathListSeparator) + kv[len(key)+1:]
			}
		}
		if _, overridden := app.Env[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	if len(app.VenvDir) > 0 {
		out = append(out, "VIRTUAL_ENV="+app.VenvDir)
	}
	for k, v := range app.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// Command builds the ready-to-start process: working directory is the
// app dir, environment carries the activated virtualenv.
func (app *ActiveApp) Command() *exec.Cmd {
	cmd := exec.Command(app.Executable(), app.Args()...)
	cmd.Dir = app.AppDir
	cmd.Env = app.Environ()
	return cmd
}

// Run spawns the instance and blocks until it exits. The child's exit
// code is recorded verbatim.
func (app *ActiveApp) Run() {
	app.lock.Lock()
	app.StartTime = time.Now()
	app.lock.Unlock()
	defer func() {
		app.lock.Lock()
		app.EndTime = time.Now()
		app.lock.Unlock()
	}()

	cmd := app.Command()
	stderr, err := cmd.StderrPipe()
	if err != nil {
		app.fail(errors.Wrap(err, "attaching stderr"))
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		app.fail(errors.Wrap(err, "attaching stdout"))
		return
	}

	logFile := app.openLogFile()
	if logFile != nil {
		defer logFile.Close()
	}

	if err := cmd.Start(); err != nil {
		app.fail(errors.Wrap(err, "starting streamlit"))
		return
	}
	app.lock.Lock()
	app.process = cmd.Process
	app.lock.Unlock()
	app.logger.WithFields(logrus.Fields{"app": app.Name, "pid": cmd.Process.Pid}).
		Infof("started %s %s", app.Executable(), strings.Join(app.Args(), " "))

	var wg sync.WaitGroup
	wg.Add(2)
	go app.processOutput(stderr, logFile, &wg)
	go app.processOutput(stdout, logFile, &wg)
	wg.Wait()

	err = cmd.Wait()
	app.lock.Lock()
	defer app.lock.Unlock()
	app.process = nil
	app.ExitCode = cmd.ProcessState.ExitCode()
	switch {
	case app.killed:
		app.State = AppKilled
	case err != nil:
		app.State = AppErrored
		app.logger.WithField("app", app.Name).Errorf("streamlit exited with error: %s", err)
	default:
		app.State = AppStopped
	}
}

func (app *ActiveApp) fail(err error) {
	app.lock.Lock()
	app.State = AppErrored
	app.ExitCode = -1
	app.lock.Unlock()
	app.logger.WithField("app", app.Name).Errorf("failed to launch: %s", err)
}

// Kill terminates the child. A killed instance is not restarted until
// the configuration is reloaded.
func (app *ActiveApp) Kill() error {
	app.lock.Lock()
	defer app.lock.Unlock()
	if app.process == nil {
		return errors.New("no running process")
	}
	app.killed = true
	return errors.Wrap(app.process.Kill(), "killing streamlit")
}

func (app *ActiveApp) openLogFile() *os.File {
	if len(app.SaveAppLogDir) == 0 {
		return nil
	}
	name := fmt.Sprintf("%s-%d.log", app.Name, app.AppID)
	f, err := os.OpenFile(filepath.Join(app.SaveAppLogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		app.logger.WithField("app", app.Name).Errorf("failed to open app log file: %s", err)
		return nil
	}
	return f
}

func (app *ActiveApp) processOutput(in io.ReadCloser, logFile *os.File, wg *sync.WaitGroup) {
	defer wg.Done()
	reader := bufio.NewReader(in)
	for {
		s, err := reader.ReadString('\n')
		if len(s) > 0 {
			app.processLine(s, logFile)
		}
		if err != nil {
			break
		}
	}
}

func (app *ActiveApp) processLine(s string, logFile *os.File) {
	if app.echo != nil {
		io.WriteString(app.echo, s)
	}
	if logFile != nil {
		logFile.WriteString(s)
	}

	app.lock.Lock()
	if strings.Contains(s, bannerReady) && app.ReadyTime.IsZero() {
		app.ReadyTime = time.Now()
		app.State = AppRunning
	}
	if idx := strings.Index(s, bannerLocalURL); idx >= 0 {
		app.URL = strings.TrimSpace(s[idx+len(bannerLocalURL):])
	}
	app.Tail = append(app.Tail, s)
	if len(app.Tail) > tailSize {
		app.Tail = app.Tail[len(app.Tail)-tailSize:]
	}
	app.lock.Unlock()
}

// snapshot copies the wire-visible fields under the app's lock, so the
// status encoder never races the output goroutines.
func (app *ActiveApp) snapshot() *ActiveApp {
	app.lock.RLock()
	defer app.lock.RUnlock()
	return &ActiveApp{
		AppID:     app.AppID,
		Name:      app.Name,
		AppDir:    app.AppDir,
		Entry:     app.Entry,
		VenvDir:   app.VenvDir,
		Address:   app.Address,
		Port:      app.Port,
		Headless:  app.Headless,
		ExtraArgs: app.ExtraArgs,
		Env:       app.Env,

		StartTime: app.StartTime,
		EndTime:   app.EndTime,
		ReadyTime: app.ReadyTime,
		URL:       app.URL,
		State:     app.State,
		ExitCode:  app.ExitCode,
		Restarts:  app.Restarts,
		Tail:      append([]string(nil), app.Tail...),

		SaveAppLogDir: app.SaveAppLogDir,
	}
}

// Ready reports whether the streamlit banner has been seen.
func (app *ActiveApp) Ready() bool {
	app.lock.RLock()
	defer app.lock.RUnlock()
	return !app.ReadyTime.IsZero()
}

func (app *ActiveApp) currentState() int {
	app.lock.RLock()
	defer app.lock.RUnlock()
	return app.State
}

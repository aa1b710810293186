package internal

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// RunOnce launches a single app in the foreground: output streams
// through untouched, an interrupt is forwarded to the child, and the
// child's exit code is returned verbatim. With pause set it waits for a
// newline on stdin before returning, so a terminal window opened just
// for the launcher stays readable after the app exits.
func RunOnce(appCfg *AppConfig, saveLogDir string, pause bool, logger *logrus.Logger) int {
	cfg := Config{Apps: []AppConfig{*appCfg}}
	applyDefaults(&cfg)

	app := NewActiveApp(time.Now().UnixNano(), &cfg.Apps[0], logger)
	app.SaveAppLogDir = saveLogDir
	app.SetEcho(os.Stdout)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigc:
			if err := app.Kill(); err != nil {
				logger.Errorf("failed to stop app: %s", err)
			}
		case <-done:
		}
	}()

	app.Run()
	close(done)
	signal.Stop(sigc)

	fmt.Printf("%s exited: %s\n", cfg.Apps[0].Name, StateString(app.State))
	if pause {
		fmt.Print("Press Enter to exit...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
	return app.ExitCode
}

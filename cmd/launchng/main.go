package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"launchng/internal"
)

func main() {
	configFile := flag.String("config", "", "configuration file")
	ui := flag.Bool("ui", false, "launch UI client only, it will attempt to connect to a server")
	daemon := flag.Bool("daemon", false, "run the supervisor daemon, requires -config")
	hosts := flag.String("hosts", "localhost", "hosts the UI queries, separated by comma")

	// one-shot mode
	dir := flag.String("dir", ".", "application directory")
	entry := flag.String("entry", internal.DefaultEntry, "streamlit entry file")
	venv := flag.String("venv", "", "virtualenv directory to activate")
	address := flag.String("address", internal.DefaultAddress, "address the app binds to")
	port := flag.Int("port", internal.DefaultPort, "port the app binds to")
	headless := flag.Bool("headless", false, "do not open a browser")
	pause := flag.Bool("pause", false, "wait for a keypress after the app exits")

	flag.Parse()
	if flag.Parsed() == false {
		flag.Usage()
		return
	}

	logger := logrus.New()
	switch {
	case *ui:
		client := &internal.Client{}
		client.ProcessLoop(*hosts)
	case *daemon:
		if len(*configFile) == 0 {
			flag.Usage()
			return
		}
		server := internal.NewServer(logger)
		server.ProcessLoop(*configFile, "", 8686)
	default:
		appCfg, saveLogDir := oneShotConfig(*configFile, logger)
		if appCfg == nil {
			appCfg = &internal.AppConfig{
				AppDir:   *dir,
				Entry:    *entry,
				VenvDir:  *venv,
				Address:  *address,
				Port:     *port,
				Headless: *headless,
			}
		}
		code := internal.RunOnce(appCfg, saveLogDir, *pause, logger)
		if code < 0 {
			code = 1
		}
		os.Exit(code)
	}
}

// oneShotConfig loads the first configured app when a config file was
// given, so the same file drives both the daemon and a foreground run.
func oneShotConfig(configFile string, logger *logrus.Logger) (*internal.AppConfig, string) {
	if len(configFile) == 0 {
		return nil, ""
	}
	lc := internal.NewLaunchConfig(configFile, logger)
	if !lc.ProcessConfig() || len(lc.CurrentConfig.Apps) == 0 {
		logger.Fatalf("no apps configured in [%s]", configFile)
	}
	return &lc.CurrentConfig.Apps[0], lc.CurrentConfig.SaveAppLogDir
}

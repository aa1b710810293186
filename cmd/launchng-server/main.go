package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"launchng/internal"
)

func main() {
	configFile := flag.String("config", "", "configuration file")
	address := flag.String("address", "", "local address to bind the status endpoint to, default any")
	port := flag.Int("port", 8686, "status endpoint port number, default: 8686")

	flag.Parse()
	if flag.Parsed() == false || len(*configFile) == 0 {
		flag.Usage()
		return
	}
	server := internal.NewServer(logrus.New())
	server.ProcessLoop(*configFile, *address, *port)
}

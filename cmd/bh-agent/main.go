//
// Copyright 2019-2020 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	systemd "github.com/coreos/go-systemd/daemon"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/twizmwazin/binharness/domain"
	"github.com/twizmwazin/binharness/ipc"
	"github.com/twizmwazin/binharness/process"
	"github.com/twizmwazin/binharness/state"
	"github.com/twizmwazin/binharness/sysio"
)

const usage string = `binharness execution agent

bh-agent is a daemon that gives an authorized remote client file, process
and filesystem-metadata access to this host, exposed over a single RPC
endpoint. All agent state is kept in memory and is lost on exit.
`

// Globals to be populated at build time through -ldflags "-X ..."; they stay
// empty otherwise.
var (
	version  string // release version
	commitId string // latest bh-agent git commit-id
	builtAt  string // build time
	builtBy  string // build owner
)

//
// bh-agent exit handler goroutine.
//
func exitHandler(
	signalChan chan os.Signal,
	ips domain.IpcServiceIface,
	profile interface{ Stop() }) {

	var printStack = false

	s := <-signalChan

	logrus.Warnf("bh-agent caught signal: %s", s)

	logrus.Info("Stopping (gracefully) ...")

	systemd.SdNotify(false, systemd.SdNotifyStopping)

	switch s {

	case syscall.SIGABRT:
		printStack = true

	case syscall.SIGINT:
		printStack = true

	case syscall.SIGQUIT:
		printStack = true

	case syscall.SIGSEGV:
		printStack = true
	}

	if printStack {
		// Buffer size = 1024 x 32, enough to hold every goroutine stack-trace.
		stacktrace := make([]byte, 32768)
		length := runtime.Stack(stacktrace, true)
		logrus.Warnf("\n\n%s\n", string(stacktrace[:length]))
	}

	// Stop serving RPCs; in-flight calls are drained first.
	ips.Stop()

	// Stop cpu/mem profiling tasks.
	if profile != nil {
		profile.Stop()
	}

	logrus.Info("Exiting ...")
	os.Exit(0)
}

// Run cpu / memory profiling collection.
func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {

	var prof interface{ Stop() }

	cpuProfOn := ctx.Bool("cpu-profiling")
	memProfOn := ctx.Bool("memory-profiling")

	// Cpu and Memory profiling options seem to be mutually exclused in pprof.
	if cpuProfOn && memProfOn {
		return nil, fmt.Errorf("Unsupported parameter combination: cpu and memory profiling")
	}

	// Typical / non-profiling case.
	if !(cpuProfOn || memProfOn) {
		return nil, nil
	}

	// Notice that 'NoShutdownHook' option is passed to profiler constructor to
	// avoid this one reacting to 'sigterm' signal arrival. IOW, we want
	// bh-agent's signal handler to be the one stopping all profiling tasks.

	if cpuProfOn {
		prof = profile.Start(
			profile.CPUProfile,
			profile.ProfilePath("."),
			profile.NoShutdownHook,
		)
	}

	if memProfOn {
		prof = profile.Start(
			profile.MemProfile,
			profile.ProfilePath("."),
			profile.NoShutdownHook,
		)
	}

	return prof, nil
}

//
// bh-agent main function
//
func main() {

	app := cli.NewApp()
	app.Name = "bh-agent"
	app.Usage = usage
	app.Version = version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Value: "0.0.0.0:60162",
			Usage: "TCP address to serve agent RPCs on",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output (default: \"\")",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	// show-version specialization.
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("bh-agent\n"+
			"\tversion: \t%s\n"+
			"\tcommit: \t%s\n"+
			"\tbuilt at: \t%s\n"+
			"\tbuilt by: \t%s\n",
			c.App.Version, commitId, builtAt, builtBy)
	}

	// Define 'debug' and 'log' settings.
	app.Before = func(ctx *cli.Context) error {

		// Create/set the log-file destination.
		if path := ctx.GlobalString("log"); path != "" {
			f, err := os.OpenFile(
				path,
				os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC,
				0666,
			)
			if err != nil {
				logrus.Fatalf(
					"Error opening log file %v: %v. Exiting ...",
					path, err,
				)
				return err
			}

			logrus.SetOutput(f)
			log.SetOutput(f)
		} else {
			logrus.SetOutput(os.Stderr)
			log.SetOutput(os.Stderr)
		}

		if logFormat := ctx.GlobalString("log-format"); logFormat == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
			})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
			})
		}

		// Set desired log-level.
		if logLevel := ctx.GlobalString("log-level"); logLevel != "" {
			switch logLevel {
			case "debug":
				logrus.SetLevel(logrus.DebugLevel)
			case "info":
				logrus.SetLevel(logrus.InfoLevel)
			case "warning":
				logrus.SetLevel(logrus.WarnLevel)
			case "error":
				logrus.SetLevel(logrus.ErrorLevel)
			case "fatal":
				logrus.SetLevel(logrus.FatalLevel)
			default:
				logrus.Fatalf(
					"log-level option '%v' not recognized. Exiting ...",
					logLevel,
				)
			}
		} else {
			// Set 'info' as our default log-level.
			logrus.SetLevel(logrus.InfoLevel)
		}

		return nil
	}

	// bh-agent main-loop execution.
	app.Action = func(ctx *cli.Context) error {

		logrus.Info("Initiating bh-agent ...")
		logrus.Infof("Listen address = %s", ctx.GlobalString("listen"))

		// Construct bh-agent services.
		var ioService = sysio.NewIOService(domain.IOOsFileService)
		var processService = process.NewProcessService()
		var registryService = state.NewRegistryService()
		var metadataStore = state.NewMetadataStore()
		var ipcService = ipc.NewIpcService()

		// Setup bh-agent services.
		processService.Setup(ioService)

		registryService.Setup(ioService, processService)

		ipcService.Setup(
			ctx.GlobalString("listen"),
			registryService,
			metadataStore,
		)

		// If requested, launch cpu/mem profiling collection.
		profile, err := runProfiler(ctx)
		if err != nil {
			logrus.Fatal(err)
		}

		// Launch exit handler (performs proper cleanup of bh-agent upon
		// receiving termination signals).
		var exitChan = make(chan os.Signal, 1)
		signal.Notify(
			exitChan,
			syscall.SIGHUP,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGSEGV,
			syscall.SIGQUIT)
		go exitHandler(exitChan, ipcService, profile)

		systemd.SdNotify(false, systemd.SdNotifyReady)

		logrus.Info("Ready ...")

		if err := ipcService.Init(); err != nil {
			logrus.Errorf("failed to start bh-agent: %v", err)
			return err
		}

		logrus.Info("Done.")

		return nil
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"github.com/usnistgov/adcsim"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	adcsim.Build.Date = buildDate
	adcsim.Build.Githash = githash
	adcsim.Build.Summary = fmt.Sprintf("adcsim version %s (git commit %s)", adcsim.Build.Version, githash)
	if host, err := os.Hostname(); err == nil {
		adcsim.Build.Host = host
	} else {
		adcsim.Build.Host = "host not detected"
	}

	registerFlags(flag.CommandLine)
	printVersion := flag.Bool("version", false, "print version and quit")
	configFile := flag.String("config", "", "read configuration from this file instead of the search path")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is adcsim version %s\n", adcsim.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		os.Exit(0)
	}

	// Samples may go to stdout, so all chatter goes to stderr.
	banner := fmt.Sprintf("\nThis is adcsim version %s (git commit %s)\n", adcsim.Build.Version, githash)
	fmt.Fprint(os.Stderr, banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(HOME, ".adcsim", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	adcsim.ProblemLogger = startLogger(problemname)
	adcsim.UpdateLogger = startLogger(logname)
	fmt.Fprintf(os.Stderr, "Logging problems to %s\n", problemname)
	fmt.Fprintf(os.Stderr, "Logging updates  to %s\n\n", logname)
	adcsim.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	v := viper.GetViper()
	if err := setupViper(v, *configFile); err != nil {
		panic(err)
	}
	applyFlags(flag.CommandLine, v)
	if v.GetBool("Verbose") {
		fmt.Fprint(os.Stderr, dumpConfig(v))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := supervise(ctx, v, runOnce); err != nil {
		adcsim.ProblemLogger.Print(err)
		log.Fatal(err)
	}
}

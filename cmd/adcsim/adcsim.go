package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"github.com/usnistgov/adcsim"
	"github.com/usnistgov/adcsim/internal/sinks"
	"gopkg.in/natefinch/lumberjack.v2"
)

// makeFileExist returns dir/filename, creating the directory and an empty file
// when they are missing. An existing file is left untouched.
func makeFileExist(dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", err
	}
	fullname := filepath.Join(dir, filename)
	f, err := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
	if err != nil {
		return "", err
	}
	return fullname, f.Close()
}

// setupViper sets up the viper configuration manager: says where to find config
// files and the filename and suffix, and installs the defaults. An explicit
// configFile replaces the search path.
func setupViper(v *viper.Viper, configFile string) error {
	adcsim.SetConfigDefaults(v)
	v.SetEnvPrefix("ADCSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %s", err)
		}
		return nil
	}

	HOME, err := os.UserHomeDir()
	if err != nil {
		adcsim.ProblemLogger.Printf("Error finding user home directory: %s", err)
	}
	dotADCsim := filepath.Join(HOME, ".adcsim")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotADCsim, filename+suffix); err != nil {
		return err
	}

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.FromSlash("/etc/adcsim"))
	v.AddConfigPath(dotADCsim)
	v.AddConfigPath(".")
	err = v.ReadInConfig() // Find and read the config file
	if err != nil {        // Handle errors reading the config file
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

// startLogger returns a logger writing to filename through lumberjack, which
// rotates it at 10 MB and keeps 4 gzipped backups for up to 180 days.
func startLogger(filename string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // MB
		MaxBackups: 4,
		MaxAge:     180, // days
		Compress:   true,
	}, "", log.LstdFlags)
}

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"sampling-rate": "sampling_rate",
	"bits":          "bits",
	"noise":         "noise",
	"frequency":     "frequency",
	"voltage":       "voltage",
	"current":       "current",
	"phasediff":     "phase_diff",
	"waveform":      "waveform",
	"presampled":    "presampled",
	"sink":          "sink.type",
	"endpoint":      "sink.endpoint",
	"path":          "sink.path",
	"verbose":       "Verbose",
}

// registerFlags defines the simulator's flags on fs.
func registerFlags(fs *flag.FlagSet) {
	fs.Int("sampling-rate", 1200, "ADC sampling rate in Hz")
	fs.Int("bits", 12, "ADC resolution in bits (1-16)")
	fs.Float64("noise", 0.1, "noise half-range as a fraction of the reference voltage")
	fs.Float64("frequency", 49.5, "signal frequency in Hz")
	fs.Float64("voltage", 240, "voltage amplitude")
	fs.Float64("current", 0, "current amplitude (0 means same as voltage)")
	fs.Float64("phasediff", 15, "phase shift added to the currents relative to the voltages, in degrees")
	fs.String("waveform", "sine", "signal waveform: sine or square")
	fs.String("presampled", "", "replay this dataset (.csv, .npy, .parquet) instead of synthesizing")
	fs.String("sink", "stdout", "output: stdout, file, fifo, tcp, tcp-server, udp, zmq, websocket, clickhouse, capture")
	fs.String("endpoint", "", "address for network sinks (host:port, or a ZMQ endpoint)")
	fs.String("path", "", "output file for file and capture sinks")
	fs.Bool("binary", false, "write 40-byte binary records instead of text lines")
	fs.String("pipe", "", "write to this named pipe (shorthand for -sink fifo -path PIPE)")
	fs.Bool("verbose", false, "print the resolved configuration")
}

// applyFlags copies the flags that were set explicitly into v, where they
// override the config file and environment.
func applyFlags(fs *flag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *flag.Flag) {
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch f.Name {
		case "binary":
			if getter.Get().(bool) {
				v.Set("sink.encoding", "binary")
			} else {
				v.Set("sink.encoding", "text")
			}
		case "pipe":
			v.Set("sink.type", "fifo")
			v.Set("sink.path", getter.Get())
		default:
			if key, ok := flagKeys[f.Name]; ok {
				v.Set(key, getter.Get())
			}
		}
	})
}

// buildSource makes the playback streamer when presampled is set, else the live streamer.
func buildSource(v *viper.Viper) (adcsim.Source, string, error) {
	var opts []adcsim.Option
	if f := v.GetFloat64("sleep_fraction"); f > 0 {
		opts = append(opts, adcsim.WithSleepFraction(f))
	}
	if dataset := v.GetString("presampled"); dataset != "" {
		rows, err := adcsim.LoadDataset(dataset)
		if err != nil {
			return nil, "", err
		}
		src, err := adcsim.NewPlaybackStreamer(rows, opts...)
		if err != nil {
			return nil, "", err
		}
		return src, "playback", nil
	}
	cfg, err := adcsim.ADCConfigFromViper(v)
	if err != nil {
		return nil, "", err
	}
	src, err := adcsim.NewStreamer(cfg, opts...)
	if err != nil {
		return nil, "", err
	}
	return src, "live", nil
}

// isPermanent tells whether a failed run would fail the same way on restart.
func isPermanent(err error) bool {
	return errors.Is(err, adcsim.ErrInvalidParameter) || errors.Is(err, adcsim.ErrEmptyDataset) ||
		errors.Is(err, os.ErrNotExist)
}

// runOnce builds a source and a sink and moves samples until ctx is done or
// something fails.
func runOnce(ctx context.Context, v *viper.Viper) error {
	src, mode, err := buildSource(v)
	if err != nil {
		return err
	}
	sinkCfg, err := sinks.ConfigFromViper(v)
	if err != nil {
		return err
	}
	runID := adcsim.NewRunID()
	sink, err := sinks.Open(ctx, sinkCfg, sinks.RunInfo{
		ID:             runID,
		Mode:           mode,
		SamplingRateHz: v.GetInt("sampling_rate"),
		ResolutionBits: v.GetInt("bits"),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("opening %s sink: %w", sinkCfg.Type, err)
	}

	adcsim.UpdateLogger.Printf("run %s: %s mode, %s %s sink", runID, mode, sinkCfg.Encoding, sinkCfg.Type)
	start := time.Now()
	n, err := adcsim.Run(ctx, src, sink, adcsim.RunOptions{
		RunID:       runID,
		UpdateEvery: v.GetInt("update_every"),
	})
	if cerr := sink.Close(); cerr != nil {
		adcsim.ProblemLogger.Printf("run %s: closing sink: %v", runID, cerr)
	}
	elapsed := time.Since(start)
	adcsim.UpdateLogger.Printf("run %s ended after %s samples in %v", runID,
		humanize.Comma(int64(n)), elapsed.Round(time.Millisecond))
	return err
}

// supervise repeats runOnce, with exponential backoff between failures, until
// ctx is done or a failure is permanent.
func supervise(ctx context.Context, v *viper.Viper, once func(context.Context, *viper.Viper) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever

	operation := func() error {
		err := once(ctx, v)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		adcsim.ProblemLogger.Printf("%v; restarting in %v", err, wait.Round(time.Millisecond))
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// dumpConfig prints every configuration value, for -verbose.
func dumpConfig(v *viper.Viper) string {
	return spew.Sdump(v.AllSettings())
}

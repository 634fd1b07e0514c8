package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usnistgov/adcsim"
)

func TestMakeFileExist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	name, err := makeFileExist(dir, "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), name)
	info, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(name, []byte("bits: 10\n"), 0644))
	_, err = makeFileExist(dir, "config.yaml")
	require.NoError(t, err)
	data, _ := os.ReadFile(name)
	assert.Equal(t, "bits: 10\n", string(data))
}

func TestStartLogger(t *testing.T) {
	name, err := makeFileExist(filepath.Join(t.TempDir(), "logs"), "updates.log")
	require.NoError(t, err)
	logger := startLogger(name)
	logger.Print("run 01ABC: 1,200 samples sent")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run 01ABC: 1,200 samples sent")
}

func TestSetupViperConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "adcsim.yaml")
	require.NoError(t, os.WriteFile(file, []byte("bits: 10\nsink:\n  type: udp\n  endpoint: localhost:4000\n"), 0644))
	v := viper.New()
	require.NoError(t, setupViper(v, file))
	assert.Equal(t, 10, v.GetInt("bits"))
	assert.Equal(t, "udp", v.GetString("sink.type"))
	assert.Equal(t, 1200, v.GetInt("sampling_rate"), "defaults remain for unset keys")

	t.Setenv("ADCSIM_SAMPLING_RATE", "2400")
	assert.Equal(t, 2400, v.GetInt("sampling_rate"))

	assert.Error(t, setupViper(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestSetupViperWithoutHome(t *testing.T) {
	var problems bytes.Buffer
	saved := adcsim.ProblemLogger
	adcsim.ProblemLogger = log.New(&problems, "", 0)
	defer func() { adcsim.ProblemLogger = saved }()

	t.Setenv("HOME", "")
	t.Chdir(t.TempDir())

	// Standard output may be the sample stream, so nothing may be printed there.
	stdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	err = setupViper(viper.New(), "")
	os.Stdout = stdout
	w.Close()
	printed, _ := io.ReadAll(r)
	r.Close()

	require.NoError(t, err)
	assert.Empty(t, string(printed))
	assert.Contains(t, problems.String(), "home directory")
}

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("adcsim", flag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse([]string{"-bits", "14", "-phasediff", "30", "-binary", "-pipe", "/tmp/adc", "-noise", "0"}))
	v := viper.New()
	adcsim.SetConfigDefaults(v)
	v.Set("voltage", 120.0) // as if from a config file
	applyFlags(fs, v)

	assert.Equal(t, 14, v.GetInt("bits"))
	assert.Equal(t, 30.0, v.GetFloat64("phase_diff"))
	assert.Equal(t, 0.0, v.GetFloat64("noise"))
	assert.Equal(t, "binary", v.GetString("sink.encoding"))
	assert.Equal(t, "fifo", v.GetString("sink.type"))
	assert.Equal(t, "/tmp/adc", v.GetString("sink.path"))
	assert.Equal(t, 120.0, v.GetFloat64("voltage"), "unset flags do not override")
}

func TestBuildSource(t *testing.T) {
	v := viper.New()
	adcsim.SetConfigDefaults(v)
	src, mode, err := buildSource(v)
	require.NoError(t, err)
	assert.Equal(t, "live", mode)
	assert.IsType(t, &adcsim.Streamer{}, src)

	dataset := filepath.Join(t.TempDir(), "rec.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("time_delta,ch0,ch1,ch2,ch3,ch4,ch5\n10,1,2,3,4,5,6\n"), 0644))
	v.Set("presampled", dataset)
	src, mode, err = buildSource(v)
	require.NoError(t, err)
	assert.Equal(t, "playback", mode)
	smp, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(6), smp.Channels[5])

	v.Set("presampled", filepath.Join(t.TempDir(), "nothing.csv"))
	_, _, err = buildSource(v)
	assert.True(t, isPermanent(err), "missing dataset: %v", err)

	v.Set("presampled", "")
	v.Set("bits", 40)
	_, _, err = buildSource(v)
	assert.True(t, isPermanent(err), "bad resolution: %v", err)
}

func TestSuperviseRetries(t *testing.T) {
	calls := 0
	once := func(ctx context.Context, v *viper.Viper) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("receiver went away (attempt %d)", calls)
		}
		return nil
	}
	assert.NoError(t, supervise(context.Background(), viper.New(), once))
	assert.Equal(t, 3, calls)
}

func TestSupervisePermanent(t *testing.T) {
	calls := 0
	once := func(ctx context.Context, v *viper.Viper) error {
		calls++
		return fmt.Errorf("bad config: %w", adcsim.ErrInvalidParameter)
	}
	err := supervise(context.Background(), viper.New(), once)
	assert.ErrorIs(t, err, adcsim.ErrInvalidParameter)
	assert.Equal(t, 1, calls)
}

func TestSuperviseCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	once := func(ctx context.Context, v *viper.Viper) error {
		cancel()
		return errors.New("interrupted mid-write")
	}
	assert.NoError(t, supervise(ctx, viper.New(), once))
}

func TestRunOnceCapture(t *testing.T) {
	v := viper.New()
	adcsim.SetConfigDefaults(v)
	v.Set("sampling_rate", 10000)
	path := filepath.Join(t.TempDir(), "run.csv")
	v.Set("sink.type", "capture")
	v.Set("sink.path", path)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, runOnce(ctx, v))

	rows, err := adcsim.LoadDataset(path)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestDumpConfig(t *testing.T) {
	v := viper.New()
	adcsim.SetConfigDefaults(v)
	assert.True(t, strings.Contains(dumpConfig(v), "sampling_rate"))
}

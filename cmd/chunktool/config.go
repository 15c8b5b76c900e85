package main

import (
	"fmt"
	"strings"

	"github.com/bsm/chunkfile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "CHUNKTOOL"

const (
	cfgLogLevel = "log-level"
	cfgMaxSize  = "max-size"
	cfgSync     = "sync"
)

var cfg = newConfig()

func newConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault(cfgLogLevel, "info")
	v.SetDefault(cfgMaxSize, int64(1<<30))
	v.SetDefault(cfgSync, false)
	return v
}

func bindFlags(cmd *cobra.Command) {
	ff := cmd.PersistentFlags()
	addFlags(ff)

	for _, name := range []string{cfgLogLevel, cfgMaxSize, cfgSync} {
		_ = cfg.BindPFlag(name, ff.Lookup(name))
	}
}

func addFlags(ff *pflag.FlagSet) {
	ff.String(cfgLogLevel, "info", "Logging level (debug, info, warn, error)")
	ff.Int64(cfgMaxSize, 1<<30, "Maximum number of bytes to load from a chunk file")
	ff.Bool(cfgSync, false, "Sync written files to stable storage")
}

func loaderOptions() *chunkfile.LoaderOptions {
	return &chunkfile.LoaderOptions{MaxSize: cfg.GetInt64(cfgMaxSize)}
}

func writerOptions() *chunkfile.WriterOptions {
	return &chunkfile.WriterOptions{Sync: cfg.GetBool(cfgSync)}
}

func newLogger() (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.GetString(cfgLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", cfgLogLevel, err)
	}

	c := zap.NewProductionConfig()
	c.Level = lvl
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build(
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)),
	)
}

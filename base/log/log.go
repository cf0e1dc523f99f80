// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var logger = atomic.NewPointer(zap.Must(zap.NewDevelopment()))

// Logger returns the current logger. It is safe to call from training workers
// while the command line replaces the logger.
func Logger() *zap.Logger {
	return logger.Load()
}

// ReplaceLogger installs l as the current logger and flushes the previous one.
func ReplaceLogger(l *zap.Logger) {
	_ = logger.Swap(l).Sync()
}

// CloseLogger discards every log entry. Tests use it to keep output quiet.
func CloseLogger() {
	ReplaceLogger(zap.NewNop())
}

// Options describes where and how verbosely to log.
type Options struct {
	Debug      bool
	Path       string // rotated log file, empty for stdout only
	MaxSize    int    // megabytes
	MaxAge     int    // days
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// OptionsFromFlags reads flags registered by AddFlags.
func OptionsFromFlags(flagSet *pflag.FlagSet, debug bool) Options {
	opts := Options{Debug: debug}
	opts.Path, _ = flagSet.GetString("log-path")
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

// NewLogger writes console lines at debug level in debug mode and JSON lines at
// info level otherwise. Entries go to out and, if opts.Path is set, to a rotated file.
func NewLogger(opts Options, out zapcore.WriteSyncer) *zap.Logger {
	var (
		encoderConfig zapcore.EncoderConfig
		encoder       zapcore.Encoder
		level         zapcore.Level
	)
	if opts.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
		level = zap.DebugLevel
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zap.InfoLevel
	}
	writers := []zapcore.WriteSyncer{out}
	if opts.Path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
		}))
	}
	return zap.New(zapcore.NewCore(encoder, zap.CombineWriteSyncers(writers...), level))
}

// SetLogger replaces the current logger according to command line flags.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	ReplaceLogger(NewLogger(OptionsFromFlags(flagSet, debug), zapcore.Lock(os.Stdout)))
}

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Console              bool          `json:"console" default:"true" help:"enable console output"`
	Filename             string        `json:"filename" placeholder:"<path>" help:"log file path, '-' for stdout, '.' to discard"`
	Append               bool          `json:"append" help:"append to existing log file"`
	RotateSchedule       string        `json:"rotateSchedule" help:"schedule to rotate log file, ex) @midnight"`
	MaxSize              int           `json:"maxSize" help:"log file max size in MB"`
	MaxBackups           int           `json:"maxBackups" help:"number of backup files"`
	MaxAge               int           `json:"maxAge" help:"how many days keep backup files"`
	Compress             bool          `json:"compress" help:"compress backup files"`
	Levels               []LevelConfig `json:"levels" hidden:""`
	UTC                  bool          `json:"utc" help:"log time format in UTC"`
	PrefixWidth          int           `json:"prefixWidth" default:"18" hidden:""`
	EnableSourceLocation bool          `json:"enableSourceLocation" default:"false" hidden:""`
	DefaultLevel         string        `json:"defaultLevel" enum:"TRACE,DEBUG,INFO,WARN,ERROR" default:"INFO" help:"TRACE,DEBUG,INFO,WARN,ERROR"`
}

type LevelConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level" enum:"TRACE,DEBUG,INFO,WARN,ERROR" default:"INFO"`
}

var PresetConfigStdout = Config{
	Filename:     "-",
	Append:       true,
	PrefixWidth:  18,
	DefaultLevel: "TRACE",
}

var PresetConfigDiscard = Config{
	Filename:     ".",
	PrefixWidth:  18,
	DefaultLevel: "TRACE",
}

var rotateCron = cron.New()

var defaultWriter []*logWriter

type logWriter struct {
	io.Writer
	isTerm bool
}

func Configure(cfg *Config) {
	for _, c := range cfg.Levels {
		levelConfig[c.Pattern] = ParseLogLevel(c.Level)
	}
	SetDefaultPrefixWidth(cfg.PrefixWidth)
	SetDefaultLevel(ParseLogLevel(cfg.DefaultLevel))
	SetDefaultEnableSourceLocation(cfg.EnableSourceLocation)

	if cfg.Filename == "." {
		defaultWriter = []*logWriter{}
	} else if cfg.Filename == "-" || cfg.Filename == "" {
		defaultWriter = []*logWriter{{Writer: os.Stdout, isTerm: true}}
	} else {
		lj := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  !cfg.UTC,
		}
		if !cfg.Append {
			lj.Rotate()
		}
		if len(cfg.RotateSchedule) > 0 {
			_, err := rotateCron.AddFunc(cfg.RotateSchedule, func() {
				lj.Rotate()
			})
			if err == nil {
				go rotateCron.Run()
			} else {
				fmt.Fprintf(os.Stderr, "ERR logger rotate schedule %s", err.Error())
			}
		}
		if cfg.Console {
			defaultWriter = []*logWriter{
				{Writer: lj, isTerm: false},
				{Writer: os.Stdout, isTerm: true},
			}
		} else {
			defaultWriter = []*logWriter{{Writer: lj, isTerm: false}}
		}
	}
}

func GetLog(name string) Log {
	return &levelLogger{
		name:         name,
		level:        GetLevel(name),
		underlying:   defaultWriter,
		prefixWidth:  prefixWidthDefault,
		enableSrcLoc: srcLocDefault,
	}
}

// NewLog returns a logger bound to the given writer instead of the
// writers installed by Configure.
func NewLog(name string, writer io.Writer) Log {
	return &levelLogger{
		name:        name,
		level:       GetLevel(name),
		underlying:  []*logWriter{{Writer: writer, isTerm: false}},
		prefixWidth: prefixWidthDefault,
	}
}

func init() {
	defaultWriter = []*logWriter{{Writer: os.Stdout, isTerm: true}}
}

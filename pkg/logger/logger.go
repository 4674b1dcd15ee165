package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`

	// File, when set, receives a JSON copy of every entry with size based
	// rotation.
	File       string `split_words:"true"`
	MaxSizeMB  int    `envconfig:"MAX_SIZE_MB" default:"10"`
	MaxBackups int    `split_words:"true" default:"5"`
	MaxAgeDays int    `envconfig:"MAX_AGE_DAYS" default:"30"`
	Compress   bool   `split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var console io.Writer = os.Stdout
	if conf.PrettyFormat {
		console = zerolog.NewConsoleWriter()
	}

	out := console
	if conf.File != "" {
		out = zerolog.MultiLevelWriter(console, newRotator(conf))
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

func newRotator(conf *Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   conf.File,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}
}

package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultService = "voice-qualification"

// Config is read from LOG_* variables. Level, when set, takes precedence
// over Debug.
type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
	Service      string `split_words:"true" default:"voice-qualification"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
	Service:      defaultService,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// New builds a logger writing to w. Every entry carries a timestamp, the
// caller and the service name.
func New(w io.Writer, conf Config) zerolog.Logger {
	service := strings.TrimSpace(conf.Service)
	if service == "" {
		service = defaultService
	}

	return zerolog.New(w).
		Level(level(conf)).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Stack().
		Logger()
}

func level(conf Config) zerolog.Level {
	if raw := strings.TrimSpace(conf.Level); raw != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}
	if conf.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var w io.Writer = os.Stdout
	if conf.PrettyFormat {
		w = zerolog.NewConsoleWriter()
	}
	log.Logger = New(w, *conf)
}

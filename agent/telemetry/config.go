package telemetry

import (
	"strings"
	"time"
)

// Config selects the telemetry sinks. The log sink is always on; the Redis
// stream and Postgres sinks are enabled by their address and DSN.
type Config struct {
	BufferSize    int           `split_words:"true" default:"256"`
	WriteTimeout  time.Duration `split_words:"true" default:"2s"`
	RedisAddr     string        `split_words:"true"`
	RedisPassword string        `split_words:"true"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	Stream        string        `split_words:"true" default:"voiceq:telemetry"`
	StreamMaxLen  int64         `split_words:"true" default:"10000"`
	PostgresDSN   string        `envconfig:"POSTGRES_DSN"`
	CreateSchema  bool          `split_words:"true" default:"false"`
}

func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func (c Config) PostgresEnabled() bool {
	return strings.TrimSpace(c.PostgresDSN) != ""
}

package internal

import "time"

type Config struct {
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthIssuer        string        `env:"AUTH_ISSUER,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	// The sweep interval should stay well below the timeout so stale
	// connections are caught within one sweep of the deadline.
	HeartbeatTimeout       time.Duration `env:"HEARTBEAT_TIMEOUT,required=true"`
	HeartbeatSweepInterval time.Duration `env:"HEARTBEAT_SWEEP_INTERVAL,required=true"`

	SessionReadTimeout  time.Duration `env:"SESSION_READ_TIMEOUT,required=true"`
	SessionWriteTimeout time.Duration `env:"SESSION_WRITE_TIMEOUT,required=true"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,required=true"`
}

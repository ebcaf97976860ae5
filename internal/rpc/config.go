package rpc

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"hyperdb-go/internal/hypererr"
)

// KeepaliveConfig mirrors spec.md §6's `keepalive: {enabled, interval, timeout}`.
type KeepaliveConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// Config is the recognized-options struct of spec.md §6. The reserved
// top-level QuerySettings key time_zone fails fast (Validate); other
// QuerySettings keys are not checked. This generalizes the teacher's
// root.go fail-fast flag/env resolution (resolveEnvVars/resolvePassword)
// from CLI flags to a reusable library config.
type Config struct {
	QueryTimeout                 time.Duration
	LocalEnforcementGrace         time.Duration
	NetworkTimeout                time.Duration
	MaxInboundMessageSize          int
	InitialFlowCredit              int
	Keepalive                      KeepaliveConfig
	QuerySettings                  map[string]string
	IncludeCustomerDetailInReason bool
}

// DefaultConfig returns the recommended defaults: 64 MiB inbound message
// cap per spec.md §6 (the inbound metadata limit is not configured here
// and stays at grpc's default), 16-message initial flow
// credit per spec.md §4.B/§9, and a 5s local-enforcement grace per
// spec.md §5.
func DefaultConfig() Config {
	return Config{
		LocalEnforcementGrace: 5 * time.Second,
		MaxInboundMessageSize: 64 * 1024 * 1024,
		InitialFlowCredit:     16,
		Keepalive:             defaultKeepalive(),
		QuerySettings:         map[string]string{},
	}
}

// reservedTopLevelKeys maps each QuerySettings key that Validate rejects
// to the spelling its hint suggests instead: the "querySetting." prefix
// spec.md §9 names as the correct spelling for the common time_zone
// misuse.
var reservedTopLevelKeys = map[string]string{
	"time_zone": "querySetting.time_zone",
}

// Validate fails fast on a QuerySettings key listed in
// reservedTopLevelKeys, naming the offending key and, for the documented
// misuse in spec.md §9, a hint redirecting it. Any other QuerySettings
// key is accepted without checking.
func (c Config) Validate() error {
	for k := range c.QuerySettings {
		if hint, bad := reservedTopLevelKeys[k]; bad {
			e := hypererr.InvalidArgument(fmt.Sprintf("unrecognized query setting %q", k))
			e.CustomerHint = fmt.Sprintf("did you mean %q?", hint)
			return e
		}
	}
	if c.InitialFlowCredit <= 0 {
		return hypererr.InvalidArgument("InitialFlowCredit must be positive")
	}
	if c.MaxInboundMessageSize <= 0 {
		return hypererr.InvalidArgument("MaxInboundMessageSize must be positive")
	}
	return nil
}

// ApplyEnv overrides Config fields from HYPERDB_* environment variables
// when the corresponding field is still its zero value, mirroring the
// teacher's applyEnvStr precedence (explicit value wins over env).
func (c Config) ApplyEnv() Config {
	if c.QueryTimeout == 0 {
		if v := envDuration("HYPERDB_QUERY_TIMEOUT"); v > 0 {
			c.QueryTimeout = v
		}
	}
	if c.NetworkTimeout == 0 {
		if v := envDuration("HYPERDB_NETWORK_TIMEOUT"); v > 0 {
			c.NetworkTimeout = v
		}
	}
	return c
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Second
}

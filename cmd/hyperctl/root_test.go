package main

import (
	"errors"
	"testing"

	"hyperdb-go/internal/hypererr"
)

func TestExitCode_MapsHypererrKinds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"deadline", hypererr.Deadline("q1", "running", nil), exitDeadline},
		{"invalid argument", hypererr.InvalidArgument("bad range"), exitQuery},
		{"plain error", errors.New("boom"), exitConn},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRootConfig_ResolveEnvVars_DoesNotOverrideExplicitFlag(t *testing.T) {
	t.Setenv("HYPERDB_ADDR", "env-host:1234")

	cfg := &rootConfig{addr: "flag-host:5678"}
	cfg.resolveEnvVars(func(name string) bool { return name == "addr" })
	if cfg.addr != "flag-host:5678" {
		t.Fatalf("got addr %q, want the explicitly set flag value to win", cfg.addr)
	}
}

func TestRootConfig_ResolveEnvVars_AppliesEnvWhenFlagUnset(t *testing.T) {
	t.Setenv("HYPERDB_ADDR", "env-host:1234")

	cfg := &rootConfig{addr: "localhost:8765"}
	cfg.resolveEnvVars(func(name string) bool { return false })
	if cfg.addr != "env-host:1234" {
		t.Fatalf("got addr %q, want env-host:1234", cfg.addr)
	}
}

func TestRootConfig_BuildTLSConfig_NilWhenNoFlagsSet(t *testing.T) {
	t.Parallel()
	cfg := &rootConfig{}
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig: %v", err)
	}
	if tlsCfg != nil {
		t.Fatal("expected a nil tls.Config when no TLS flags are set")
	}
}

func TestRootConfig_BuildTLSConfig_InsecureSkipVerify(t *testing.T) {
	t.Parallel()
	cfg := &rootConfig{insecure: true}
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig: %v", err)
	}
	if tlsCfg == nil || !tlsCfg.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify to be set")
	}
}

func TestBuildRootCmd_RegistersAllSubcommands(t *testing.T) {
	t.Parallel()
	cmd := buildRootCmd(&rootConfig{})
	want := map[string]bool{"run": false, "status": false, "chunks": false, "rows": false}
	for _, c := range cmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected a %q subcommand to be registered", name)
		}
	}
}

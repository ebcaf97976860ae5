package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	hyperdb "hyperdb-go"
	"hyperdb-go/internal/hypererr"
)

// exit codes
const (
	exitOK        = 0
	exitConn      = 1
	exitQuery     = 2
	exitDeadline  = 3
	exitINT       = 130
)

type rootConfig struct {
	addr           string
	queryTimeout   time.Duration
	networkTimeout time.Duration
	verbose        bool
	tlsCACert      string
	tlsClientCert  string
	tlsKey         string
	insecure       bool
}

func newRootCmd() *cobra.Command {
	cfg := &rootConfig{}
	return buildRootCmd(cfg)
}

func buildRootCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hyperctl",
		Short:         "Hyper query engine client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.resolveEnvVars(cmd.Flags().Changed)
			return nil
		},
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.AddCommand(newRunCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newChunksCmd(cfg))
	cmd.AddCommand(newRowsCmd(cfg))

	f := cmd.PersistentFlags()
	f.StringVarP(&cfg.addr, "addr", "a", "localhost:8765", "Hyper server address (host:port)")
	f.DurationVarP(&cfg.queryTimeout, "timeout", "t", 0, "overall query deadline (0 = no timeout)")
	f.DurationVar(&cfg.networkTimeout, "network-timeout", 30*time.Second, "per-RPC network timeout")
	f.BoolVar(&cfg.verbose, "verbose", false, "show query id and timing to stderr")
	f.StringVar(&cfg.tlsCACert, "tls-cert", "", "path to CA certificate PEM file")
	f.StringVar(&cfg.tlsClientCert, "tls-client-cert", "", "path to client certificate PEM file")
	f.StringVar(&cfg.tlsKey, "tls-key", "", "path to client private key PEM file")
	f.BoolVar(&cfg.insecure, "insecure-skip-verify", false, "skip TLS certificate verification (insecure)")

	return cmd
}

// resolveEnvVars applies HYPERDB_ADDR for the --addr flag when it was not
// explicitly set, mirroring the teacher's applyEnvStr precedence.
func (c *rootConfig) resolveEnvVars(changed func(string) bool) {
	if !changed("addr") {
		if v := os.Getenv("HYPERDB_ADDR"); v != "" {
			c.addr = v
		}
	}
}

// buildTLSConfig returns a *tls.Config built from TLS flags, or nil for
// plain TCP, per the teacher's root.go.
func (c *rootConfig) buildTLSConfig() (*tls.Config, error) {
	if c.tlsCACert == "" && c.tlsClientCert == "" && c.tlsKey == "" && !c.insecure {
		return nil, nil
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: c.insecure, //nolint:gosec
	}
	if c.tlsCACert != "" {
		data, err := os.ReadFile(c.tlsCACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("parsing CA cert: no valid PEM certificate found")
		}
		tlsCfg.RootCAs = pool
	}
	if c.tlsClientCert != "" || c.tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(c.tlsClientCert, c.tlsKey)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func (c *rootConfig) hyperConfig() hyperdb.Config {
	cfg := hyperdb.DefaultConfig()
	cfg.QueryTimeout = c.queryTimeout
	cfg.NetworkTimeout = c.networkTimeout
	return cfg
}

// exitCode maps an error to the appropriate process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var he *hypererr.Error
	if errors.As(err, &he) {
		switch he.Kind {
		case hypererr.KindDeadline:
			return exitDeadline
		case hypererr.KindSubmission, hypererr.KindInvalidArgument, hypererr.KindProtocol:
			return exitQuery
		}
	}
	return exitConn
}

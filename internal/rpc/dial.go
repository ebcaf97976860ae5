package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"hyperdb-go/internal/hyperpb"
)

// Dial establishes the shared grpc.ClientConn the gateway binds queries
// against. It generalizes the teacher's conn.dialNet (a tls.Dialer vs.
// plain net.Dialer choice) to grpc transport credentials, and applies
// Config's MaxInboundMessageSize/Keepalive per spec.md §6.
//
// The returned ClientConn is owned by the caller: spec.md §5 requires
// the library never close a caller-provided channel, so Client.Close
// (the public API) only closes connections it dialed itself via this
// function.
func Dial(ctx context.Context, addr string, cfg Config, tlsCfg *tls.Config) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}

	// InitialFlowCredit is applied only here, as the HTTP/2 flow-control
	// window: credit × 1 MiB, 16 MiB by default, which bounds how far the
	// server can get ahead of the client at the transport level. The
	// observer (internal/streaming) keeps no message credit of its own; it
	// receives continuously into an unbounded buffer.
	credit := cfg.InitialFlowCredit
	if credit <= 0 {
		credit = 16
	}
	window := int32(credit * 1024 * 1024)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithInitialWindowSize(window),
		grpc.WithInitialConnWindowSize(window),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(hyperpb.CodecName()),
			grpc.MaxCallRecvMsgSize(cfg.MaxInboundMessageSize),
		),
	}
	if cfg.Keepalive.Enabled {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.Keepalive.Interval,
			Timeout: cfg.Keepalive.Timeout,
		}))
	}

	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return cc, nil
}

// defaultKeepalive matches the interval/timeout the spec's glossary
// implies is sane for a long-lived analytical session: a minute between
// pings, 10s to notice a dead peer.
func defaultKeepalive() KeepaliveConfig {
	return KeepaliveConfig{Enabled: true, Interval: time.Minute, Timeout: 10 * time.Second}
}

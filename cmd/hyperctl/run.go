package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	hyperdb "hyperdb-go"
	"hyperdb-go/internal/output"
)

func newRunCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "run <sql>",
		Short: "Submit a SQL query and stream its result batches to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}

func runQuery(ctx context.Context, cfg *rootConfig, sql string, w io.Writer) error {
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		return err
	}

	client, err := hyperdb.Dial(ctx, cfg.addr, cfg.hyperConfig(), tlsCfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	start := time.Now()
	handle, err := client.Submit(ctx, sql, hyperdb.TransferModeAdaptive)
	if err != nil {
		return err
	}
	defer handle.Close()

	if cfg.verbose {
		fmt.Fprintf(os.Stderr, "query id: %s\n", handle.QueryID())
	}

	if err := output.Raw(ctx, w, batchFunc(handle.Next)); err != nil {
		return err
	}

	if cfg.verbose {
		fmt.Fprintf(os.Stderr, "query time: %v\n", time.Since(start))
	}
	return nil
}

// batchFunc adapts QueryHandle.Next to output.BatchIterator, handing on
// each batch's opaque bytes.
type batchFunc func(ctx context.Context) (*hyperdb.QueryResult, error)

func (f batchFunc) Next(ctx context.Context) ([]byte, error) {
	batch, err := f(ctx)
	if err != nil || batch == nil {
		return nil, err
	}
	if batch.Data == nil {
		return []byte{}, nil
	}
	return batch.Data, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	hyperdb "hyperdb-go"
	"hyperdb-go/internal/paginate"
)

func newRowsCmd(cfg *rootConfig) *cobra.Command {
	var byteLimit uint64
	cmd := &cobra.Command{
		Use:   "rows <query-id> <row-offset> <row-limit>",
		Short: "Fetch a range of result rows",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rowOffset, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("row-offset: %w", err)
			}
			rowLimit, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("row-limit: %w", err)
			}
			return runRows(cmd.Context(), cfg, args[0], rowOffset, rowLimit, byteLimit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Uint64Var(&byteLimit, "byte-limit", paginate.MaxRowLimitByteSize, "byte cap per fetch")
	return cmd
}

func runRows(ctx context.Context, cfg *rootConfig, queryID string, rowOffset, rowLimit, byteLimit uint64, w io.Writer) error {
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		return err
	}

	client, err := hyperdb.Dial(ctx, cfg.addr, cfg.hyperConfig(), tlsCfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	it, err := client.FetchRows(queryID, rowOffset, rowLimit, byteLimit)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		batch, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
		if _, err := w.Write(batch.Data); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
	}
}

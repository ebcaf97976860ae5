package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	hyperdb "hyperdb-go"
)

func newChunksCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <query-id> <chunk-id> <count>",
		Short: "Fetch a range of persisted result chunks",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunkID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("chunk-id: %w", err)
			}
			count, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			return runChunks(cmd.Context(), cfg, args[0], chunkID, count, cmd.OutOrStdout())
		},
	}
}

func runChunks(ctx context.Context, cfg *rootConfig, queryID string, chunkID, count uint64, w io.Writer) error {
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		return err
	}

	client, err := hyperdb.Dial(ctx, cfg.addr, cfg.hyperConfig(), tlsCfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	it := client.FetchChunks(queryID, chunkID, count)
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

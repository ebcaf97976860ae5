package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	hyperdb "hyperdb-go"
	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/statuspoll"
)

func newStatusCmd(cfg *rootConfig) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <query-id>",
		Short: "Fetch or wait for a query's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cfg, args[0], wait, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&wait, "wait-finished", false, "block until the query reaches a terminal completion status")
	return cmd
}

// statusInfo is the JSON output of the status command.
type statusInfo struct {
	QueryID          string `json:"query_id"`
	ChunkCount       uint64 `json:"chunk_count"`
	RowCount         uint64 `json:"row_count"`
	Progress         float64 `json:"progress"`
	CompletionStatus string `json:"completion_status"`
}

func runStatus(ctx context.Context, cfg *rootConfig, queryID string, wait bool, w io.Writer) error {
	tlsCfg, err := cfg.buildTLSConfig()
	if err != nil {
		return err
	}

	client, err := hyperdb.Dial(ctx, cfg.addr, cfg.hyperConfig(), tlsCfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	predicate := statuspoll.Predicate(func(s *hyperdb.QueryStatus) bool { return true })
	if wait {
		predicate = func(s *hyperdb.QueryStatus) bool {
			return s != nil && s.CompletionStatus == hyperpb.CompletionStatusFinished
		}
	}

	status, err := client.WaitFor(ctx, queryID, rpc.NewDeadline(cfg.queryTimeout), predicate)
	if err != nil {
		return err
	}

	si := statusInfo{QueryID: queryID}
	if status != nil {
		si.ChunkCount = status.ChunkCount
		si.RowCount = status.RowCount
		si.Progress = status.Progress
		si.CompletionStatus = status.CompletionStatus.String()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(si)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contract-hooks/internal/orchestrator"
	"contract-hooks/internal/testdata"
	"contract-hooks/internal/types"
)

var transactionsFile string

// replayCmd runs recorded transactions through the hooks offline
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Prepare recorded transactions and print the requests that would be sent",
	Long: `Loads a JSON array of transactions, prepares each one in order and prints
the resulting request. Transactions that carry a "real" response are completed
afterwards, so captured tokens and ids flow into the transactions that follow.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&transactionsFile, "transactions", "t", "", "Path to the transactions JSON file (required)")
	replayCmd.MarkFlagRequired("transactions")
}

type replayResult struct {
	Name    string        `json:"name"`
	Outcome string        `json:"outcome"`
	Skipped bool          `json:"skipped,omitempty"`
	Stages  []string      `json:"stages"`
	Request types.Request `json:"request"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	transactions, err := testdata.NewLoader(".").LoadTransactions(transactionsFile)
	if err != nil {
		return err
	}

	orch := orchestrator.FromConfig(cfg, registry, log)
	results := make([]replayResult, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		prep := orch.Prepare(tx)

		result := replayResult{
			Name:    tx.Name,
			Outcome: prep.Outcome.String(),
			Skipped: tx.Skip,
			Request: tx.Request,
		}
		for _, stage := range prep.Stages {
			result.Stages = append(result.Stages, stage.String())
		}
		results = append(results, result)

		if tx.Real != nil && !tx.Skip {
			done := orch.Complete(tx)
			log.Debug("replayed response", zap.String("transaction", tx.Name), zap.Int("status", tx.Real.StatusCode), zap.Error(done.Err))
		}
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

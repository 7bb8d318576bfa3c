package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var positionCmd = &cobra.Command{
	Use:   "position <system>",
	Short: "Print the last checkpoint and newest stored period of a system",
	Args:  cobra.ExactArgs(1),
	RunE:  runPosition,
}

func init() {
	rootCmd.AddCommand(positionCmd)
}

func runPosition(cmd *cobra.Command, args []string) error {
	system := args[0]
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	pos, err := s.LastPosition(ctx, system)
	if err != nil {
		return err
	}
	maxPeriod, err := s.MaxPersistedPeriod(ctx, system)
	if err != nil {
		return err
	}

	out := map[string]any{
		"system":     system,
		"position":   pos,
		"max_period": maxPeriod.Format(time.RFC3339),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/NethermindEth/committer/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func DBStatsCmd(newNodeFn NewNodeFn, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "db-stats",
		Short: "Count the nodes and records stored in the database",
		Long:  `This subcommand walks every bucket of the database and prints its number of nodes and their size.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dbStats(cmd, newNodeFn, load)
		},
	}
}

func dbStats(cmd *cobra.Command, newNodeFn NewNodeFn, load configLoader) error {
	n, err := openNode(cmd, newNodeFn, load)
	if err != nil {
		return err
	}
	defer closeNode(n)

	if n.Config().DatabasePath == "" {
		return fmt.Errorf("--%v cannot be empty", dbPathF)
	}

	stats, err := n.TrieDB().Stats()
	if err != nil {
		return err
	}

	var (
		totalSize   utils.DataSize
		totalInner  int
		totalLeaves int

		items [][]string
	)
	for _, s := range stats {
		size := utils.DataSize(s.KeySize + s.ValueSize)
		items = append(items, []string{
			s.Bucket.String(),
			fmt.Sprintf("%d", s.Inner),
			fmt.Sprintf("%d", s.Leaves),
			size.String(),
		})
		totalSize += size
		totalInner += s.Inner
		totalLeaves += s.Leaves
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Bucket", "Inner", "Leaves", "Size"})
	table.AppendBulk(items)
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", totalInner), fmt.Sprintf("%d", totalLeaves), totalSize.String()})
	table.Render()
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pablasso/liftoff/internal/demo"
	"github.com/pablasso/liftoff/internal/graph"
	"github.com/pablasso/liftoff/internal/task"
)

var graphConcurrency int

func init() {
	graphCmd.Flags().IntVar(&graphConcurrency, "concurrency", 3, "Batch size used to preview concurrency batches")
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resolved execution order without running anything",
	Long:  `Resolve the demo boot sequence per stage and print the topological order and the concurrency batches it would execute in.`,
	Args:  cobra.NoArgs,
	RunE:  printGraph,
}

func printGraph(cmd *cobra.Command, args []string) error {
	registry := task.NewRegistry(zap.NewNop())
	if err := registry.RegisterAll(demo.Tasks(1.0)); err != nil {
		return err
	}

	for _, st := range task.Stages() {
		tasks := registry.TasksForStage(st)
		fmt.Printf("stage %s (%d tasks)\n", st, len(tasks))
		if len(tasks) == 0 {
			continue
		}

		order, err := graph.Resolve(tasks, registry, zap.NewNop())
		if err != nil {
			return err
		}

		for i, batch := range graph.Batches(order, graphConcurrency) {
			ids := make([]string, len(batch))
			for j, t := range batch {
				ids[j] = t.ID
			}
			fmt.Printf("  batch %d: %s\n", i+1, strings.Join(ids, ", "))
		}
	}
	return nil
}

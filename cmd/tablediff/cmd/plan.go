package cmd

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/GannettDigital/tablediff/internal/config"
	"github.com/GannettDigital/tablediff/internal/graph"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the job run order for a configuration file",
	Long: `Plan reads every job in the configuration file, builds the
dependency graph from each job's depends_on list, and prints the order
jobs will run in so that every job runs after the jobs it depends on.

Example:
  tablediff plan --config tablediff.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dependsOn := make(map[string][]string, len(cfg.Jobs))
	for name, job := range cfg.Jobs {
		dependsOn[name] = job.DependsOn
	}

	g, err := graph.BuildFromDependencies(dependsOn)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	order, err := g.RunOrder()
	if err != nil {
		return fmt.Errorf("failed to compute run order: %w", err)
	}

	color.Bold.Println("Diff plan")
	fmt.Printf("  %d job(s), %d dependency edge(s)\n\n", g.NodeCount(), countEdges(g))

	for i, name := range order {
		job := cfg.Jobs[name]
		bisect := cfg.GetJobBisection(name)
		deps := "(none)"
		if parents := g.GetParents(name); len(parents) > 0 {
			deps = fmt.Sprintf("%v", parents)
		}
		fmt.Printf("  %s %s\n", color.FgCyan.Render(fmt.Sprintf("[%d]", i+1)), color.Bold.Render(name))
		fmt.Printf("      %s <-> %s  key=%v\n", job.LeftTable, job.RightTable, job.KeyColumns)
		fmt.Printf("      depends_on=%s  bisection_factor=%d  bisection_threshold=%d\n",
			deps, bisect.Factor, bisect.Threshold)
	}

	return nil
}

func countEdges(g *graph.Graph) int {
	n := 0
	for _, name := range g.AllNodes() {
		n += g.OutDegree(name)
	}
	return n
}

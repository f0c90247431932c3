package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"babylon/internal/config"
	"babylon/internal/domain"
	"babylon/internal/logging"
	"babylon/internal/runfacade"
	"babylon/internal/workflow"
)

func newRunCommand() *cobra.Command {
	var (
		provider            string
		model               string
		renderer            string
		budget              float64
		maxDepth            int
		noCLI               bool
		cwd                 string
		verbose             bool
		reviewerModel       string
		economy             bool
		complexityThreshold float64
		maxContextTurns     int
		runName             string
		metricsAddr         string
	)

	cmd := &cobra.Command{
		Use:   "run <description>",
		Short: "Run a task through the workflow engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args, " ")

			overrides := config.Overrides{}
			if cmd.Flags().Changed("provider") {
				overrides.Provider = &provider
			}
			if cmd.Flags().Changed("model") {
				overrides.Model = &model
			}
			if cmd.Flags().Changed("renderer") {
				overrides.Renderer = &renderer
			}
			if cmd.Flags().Changed("budget") {
				overrides.BudgetDollars = &budget
			}
			if cmd.Flags().Changed("max-depth") {
				overrides.MaxDepth = &maxDepth
			}
			if cmd.Flags().Changed("no-cli") {
				overrides.NoCLI = &noCLI
			}
			if cmd.Flags().Changed("cwd") {
				overrides.WorkingDirectory = &cwd
			}
			if cmd.Flags().Changed("verbose") {
				overrides.Verbose = &verbose
			}
			if cmd.Flags().Changed("reviewer-model") {
				overrides.ReviewerModel = &reviewerModel
			}
			if cmd.Flags().Changed("economy") {
				overrides.Economy = &economy
			}
			if cmd.Flags().Changed("complexity-threshold") {
				overrides.ComplexityThreshold = &complexityThreshold
			}
			if cmd.Flags().Changed("max-context-turns") {
				overrides.MaxContextTurns = &maxContextTurns
			}
			if cmd.Flags().Changed("name") {
				overrides.RunName = &runName
			}
			if cmd.Flags().Changed("metrics-addr") {
				overrides.MetricsAddr = &metricsAddr
			}

			workingDir := cwd
			cfg, err := config.Resolve(workingDir, overrides)
			if err != nil {
				return err
			}

			logger := logging.NewComponentLogger("babylon")
			facade, err := runfacade.New(cfg, logger)
			if err != nil {
				return err
			}
			defer facade.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := facade.Run(ctx, description)
			if err != nil {
				return err
			}

			printSummary(cmd, result, facade)

			if result.Status != domain.TaskCompleted {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openai, anthropic)")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().StringVar(&renderer, "renderer", "", "output renderer (terminal, log, none)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget ceiling in dollars (0 = unlimited)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum decomposition depth")
	cmd.Flags().BoolVar(&noCLI, "no-cli", false, "disable the invoke_cursor_cli tool")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (default: current directory)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().StringVar(&reviewerModel, "reviewer-model", "", "cheaper model to use for economy-mode reviews")
	cmd.Flags().BoolVar(&economy, "economy", false, "force economy-mode turn budgets everywhere")
	cmd.Flags().Float64Var(&complexityThreshold, "complexity-threshold", 0, "analyzer complexity at or below which planning is skipped")
	cmd.Flags().IntVar(&maxContextTurns, "max-context-turns", 0, "maximum turns of conversation history kept per agent")
	cmd.Flags().StringVar(&runName, "name", "", "run name; creates generations/<NN>-<name>/output as the working directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for a /metrics endpoint (empty disables it)")

	return cmd
}

func printSummary(cmd *cobra.Command, result workflow.Result, facade *runfacade.Facade) {
	out := cmd.OutOrStdout()

	statusLine := fmt.Sprintf("status: %s", result.Status)
	if result.Status == domain.TaskCompleted {
		fmt.Fprintln(out, green(statusLine))
	} else {
		fmt.Fprintln(out, red(statusLine))
	}

	fmt.Fprintf(out, "artifacts: %d\n", len(result.Artifacts))
	fmt.Fprintf(out, "tokens: %d prompt + %d completion = %d total\n",
		result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)

	total := facade.TotalCost()
	fmt.Fprintf(out, "cost: $%.4f\n", total)
	if byRole, byModel := facade.CostBreakdown(); len(byRole) > 0 {
		fmt.Fprintln(out, "  by role:")
		for role, cost := range byRole {
			fmt.Fprintf(out, "    %s: $%.4f\n", role, cost)
		}
		fmt.Fprintln(out, "  by model:")
		for model, cost := range byModel {
			fmt.Fprintf(out, "    %s: $%.4f\n", model, cost)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dealroom-supervisor/internal/bootstrap"
	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/supervisor"
	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/internal/supervisor/router"
	"dealroom-supervisor/pkg/registry"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question about a deal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [question]",
	Short: "Show the classification and routing of a question without calling specialists",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	askCmd.Flags().String("deal", "", "deal id (required)")
	askCmd.Flags().String("user", "cli", "user id")
	askCmd.Flags().String("org", "", "organization id")
	askCmd.Flags().Bool("json", false, "print the full run result as JSON")
	askCmd.Flags().Bool("trace", false, "print trace metadata after the answer")
	askCmd.Flags().Duration("timeout", 3*time.Minute, "overall timeout")
	_ = askCmd.MarkFlagRequired("deal")

	classifyCmd.Flags().String("registry", "", "specialist registry file (defaults to the built-in registry)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(classifyCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func cliLogger(cmd *cobra.Command) logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.NewZapAdapter(logger.New(level, "console", "stderr"))
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cliLogger(cmd)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connecting data stores: %w", err)
	}
	defer stores.Close()

	stack, err := bootstrap.Build(ctx, cfg, stores, nil, log)
	if err != nil {
		return err
	}

	deal, _ := cmd.Flags().GetString("deal")
	user, _ := cmd.Flags().GetString("user")
	org, _ := cmd.Flags().GetString("org")

	result := stack.Supervisor.Run(ctx, supervisor.Query{
		Text:           strings.Join(args, " "),
		DealID:         deal,
		UserID:         user,
		OrganizationID: org,
	})

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	printAnswer(cmd.OutOrStdout(), result, stack.Registry)

	trace, _ := cmd.Flags().GetBool("trace")
	if trace {
		fmt.Fprintln(cmd.OutOrStdout())
		return writeJSON(cmd.OutOrStdout(), supervisor.TraceMetadata(result))
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("registry")
	reg, err := registry.LoadOrDefault(path)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	c := classifier.New(classifier.Config{}, nil, nil).Classify(cmd.Context(), question)
	d := router.New(reg).Route(c, question)

	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"classification": c,
		"routing":        d,
		"shouldRetrieve": classifier.ShouldRetrieve(c),
	})
}

func printAnswer(w io.Writer, result *supervisor.RunResult, reg *registry.SpecialistRegistry) {
	resp := result.Response
	fmt.Fprintln(w, resp.Content)
	fmt.Fprintln(w)

	names := make([]string, 0, len(resp.Specialists))
	for _, id := range resp.Specialists {
		names = append(names, reg.DisplayName(id))
	}
	fmt.Fprintf(w, "Confidence: %.2f | Specialists: %s | Synthesized: %t | %dms\n",
		resp.Confidence, strings.Join(names, ", "), resp.WasSynthesized, resp.TotalLatencyMs)

	for i, src := range resp.Sources {
		label := src.DocumentName
		if label == "" {
			label = src.DocumentID
		}
		if label == "" {
			continue
		}
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, label, src.Relevance())
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}


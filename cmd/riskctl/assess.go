package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"change-risk/backend/internal/engine"
	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

var (
	assessRequest   string
	assessReference string
	assessEvidence  string
	assessLink      string
	assessTimezone  string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run every stage of an assessment and print the verdict after each",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(assessRequest)
		if err != nil {
			return err
		}
		snap, err := repository.LoadSnapshot(assessReference)
		if err != nil {
			return err
		}
		loc, err := time.LoadLocation(assessTimezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		evidence, err := parseEvidence(assessEvidence, assessLink)
		if err != nil {
			return err
		}

		eng := engine.New(snap, snap, snap, evidence, engine.WithLocation(loc))
		return runAssessment(cmd.Context(), eng, req, cmd.OutOrStdout())
	},
}

func init() {
	assessCmd.Flags().StringVarP(&assessRequest, "request", "r", "config/sample_request.yaml", "change request file")
	assessCmd.Flags().StringVar(&assessReference, "reference", "config/reference.yaml", "reference data file")
	assessCmd.Flags().StringVar(&assessEvidence, "evidence", "pass", "testing evidence: pass, fail or none")
	assessCmd.Flags().StringVar(&assessLink, "evidence-link", "https://testing-portal.example.com/test-results", "base URL of the test results")
	assessCmd.Flags().StringVar(&assessTimezone, "timezone", "UTC", "time zone for peak hours and maintenance windows")
}

func parseEvidence(mode, linkBase string) (engine.TestEvidenceSource, error) {
	switch mode {
	case "none":
		return engine.StaticEvidence{}, nil
	case "pass", "fail":
		passed := mode == "pass"
		return engine.EvidenceFunc(func(_ context.Context, req models.ChangeRequest) (engine.TestEvidence, error) {
			return engine.TestEvidence{Link: strings.TrimRight(linkBase, "/") + "/" + req.ID, Passed: passed}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown evidence mode %q", mode)
	}
}

// runAssessment walks req through every stage on a fresh session.
func runAssessment(ctx context.Context, eng *engine.Engine, req models.ChangeRequest, out io.Writer) error {
	session := eng.NewSession()
	state, err := session.Submit(ctx, req)
	if err != nil {
		return err
	}
	printStage(out, state)

	for !engine.IsTerminal(state) {
		state, err = session.Advance(ctx, state)
		if err != nil {
			return err
		}
		printStage(out, state)
	}

	fmt.Fprintf(out, "\nVerdict: %s\n", strings.ToUpper(string(state.RiskLevel)))
	fmt.Fprintf(out, "Recommended action: %s\n", state.RecommendedAction)
	if state.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", state.Summary)
	}
	return nil
}

func printStage(out io.Writer, state models.WorkflowState) {
	if len(state.Stages) == 0 {
		return
	}
	st := state.Stages[len(state.Stages)-1]
	fmt.Fprintf(out, "[%d] %s: %s\n", st.Step, st.Name, st.RiskLevel)
	for _, f := range st.RiskFactors {
		fmt.Fprintf(out, "    factor: %s\n", f)
	}
	for _, r := range st.Recommendations {
		fmt.Fprintf(out, "    recommendation: %s\n", r)
	}
}

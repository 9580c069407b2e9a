package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/demo-management/internal/endpointtest"
)

// DefaultReportFile is where endpoint-test writes its CSV report.
const DefaultReportFile = "endpoint_test_report.csv"

func newEndpointTestCmd(o *rootOptions) *cobra.Command {
	var (
		rc     endpointtest.Config
		output string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "endpoint-test",
		Short: "Run the endpoint test suite against a running service",
		Long: `Runs the fixed 12-step scenario (health, demo CRUD, status, activity flag,
members and two negative checks) against a running Demo Management service,
prints a summary and writes a CSV report.

Exit status is 0 when every step passed, 1 when any step failed and 2 when
the suite could not run or the report could not be written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return &exitError{code: ExitSetup, err: err}
			}
			rc.Logger = o.logger(cfg)

			runner, err := endpointtest.NewRunner(rc)
			if err != nil {
				return &exitError{code: ExitSetup, err: err}
			}
			eff := runner.Config()
			fmt.Fprintf(o.stdout, "Testing against %s%s\n", eff.BaseURL, eff.APIPrefix)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			results := runner.Run(ctx)

			if !quiet {
				endpointtest.PrintResults(o.stdout, results)
			}
			summary := endpointtest.Summarize(results)
			endpointtest.PrintSummary(o.stdout, summary)

			if err := endpointtest.WriteReportFile(output, results); err != nil {
				return &exitError{code: ExitSetup, err: err}
			}
			fmt.Fprintf(o.stdout, "Report written to %s\n", output)

			if !summary.AllPassed() {
				return &exitError{code: ExitFailure, silent: true}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rc.BaseURL, "base-url", endpointtest.DefaultBaseURL, "service base URL")
	f.StringVar(&rc.APIPrefix, "api-prefix", endpointtest.DefaultAPIPrefix, "API path prefix")
	f.DurationVar(&rc.Timeout, "timeout", endpointtest.DefaultTimeout, "per-request timeout")
	f.StringVar(&rc.UserID, "user-id", endpointtest.DefaultUserID, "value of the user-id header")
	f.StringVar(&rc.DemoIDSeed, "demo-id", endpointtest.DefaultDemoIDSeed, "demo-id used by the members step when no demo was created")
	f.StringVar(&rc.MemberUserID, "member-user-id", endpointtest.DefaultMemberUserID, "user assigned by the assign-member step")
	f.StringVar(&rc.MemberRole, "member-role", endpointtest.DefaultMemberRole, "role assigned by the assign-member step")
	f.IntVar(&rc.AssignStatus, "assign-status", endpointtest.DefaultAssignStatus, "status expected from the assign-member step (422 when the user directory does not know the member)")
	f.IntVar(&rc.PageOffset, "offset", 0, "offset for list requests")
	f.IntVar(&rc.PageLimit, "limit", endpointtest.DefaultPageLimit, "limit for list requests")
	f.StringVar(&rc.OrderBy, "order-by", endpointtest.DefaultOrderBy, "order_by for list requests")
	f.StringVar(&rc.DemoName, "demo-name", "", `name of the created demo (default "Test Demo <random>")`)
	f.BoolVar(&rc.Reset, "reset", false, "call POST /admin/reset before running")
	f.StringVarP(&output, "output", "o", DefaultReportFile, "CSV report path")
	f.BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	return cmd
}

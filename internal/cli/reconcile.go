package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"taskapi/internal/logger"
	"taskapi/internal/password"
	"taskapi/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Resource string
	DryRun   bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair membership and email indexes",
		Long: `Bring the auxiliary indexes back in line with the stored records.

Records that exist but are missing from their type's index are added, index
members whose record is gone are removed, and user email entries that point
at missing or re-addressed users are dropped or restored.

Create and delete are not atomic, so an interrupted request can leave such
drift behind. Listing tolerates it; this command cleans it up. Run it while
no writers are active.

Example:
  taskapi reconcile --dry-run
  taskapi reconcile --resource tag --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Resource, "resource", "", "only reconcile this resource (user|task|priority|tag)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report drift without changing anything")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := logger.Sugar.WithServiceName(serviceName)
	defer log.Close()

	st, err := opts.openStore(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closeStore(st)

	stores := store.New(st, password.NewHasher(opts.Config.BcryptCost), log)

	reconcilers := stores.Reconcilers()
	if opts.Resource != "" {
		reconcilers = slices.DeleteFunc(reconcilers, func(r store.Reconciler) bool {
			return r.Resource() != opts.Resource
		})
		if len(reconcilers) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown resource %q", opts.Resource))
		}
	}

	reports := make(reconcileResult, 0, len(reconcilers))
	for _, r := range reconcilers {
		report, err := r.Reconcile(ctx, opts.DryRun)
		if err != nil {
			return WrapExitError(ExitFailure, "reconcile "+r.Resource(), err)
		}
		reports = append(reports, report)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(reports)
}

type reconcileResult []store.Report

func (rr reconcileResult) String() string {
	var b strings.Builder
	for i, r := range rr {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %d records", r.Resource, r.Records)
		if r.Clean() {
			b.WriteString(", clean")
			continue
		}
		verb := "added"
		if r.DryRun {
			verb = "would add"
		}
		if len(r.Added) > 0 {
			fmt.Fprintf(&b, ", %s %s", verb, strings.Join(r.Added, " "))
		}
		verb = "removed"
		if r.DryRun {
			verb = "would remove"
		}
		if len(r.Removed) > 0 {
			fmt.Fprintf(&b, ", %s %s", verb, strings.Join(r.Removed, " "))
		}
	}
	return b.String()
}

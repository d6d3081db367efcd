package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (cli *commandLine) audit(ctx context.Context, repair bool) error {
	report, err := cli.usrSvc.Audit(ctx, repair)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "accounts\t%d\n", report.Accounts)
	_, _ = fmt.Fprintf(w, "legacy digests\t%d\n", report.Legacy)
	_, _ = fmt.Fprintf(w, "missing profiles\t%d\n", report.MissingProfiles)
	_, _ = fmt.Fprintf(w, "drifted profiles\t%d\n", report.Drifted)
	if repair {
		_, _ = fmt.Fprintf(w, "repaired\t%d\n", report.Repaired)
		_, _ = fmt.Fprintf(w, "failed\t%d\n", report.Failed)
	}
	if len(report.DriftedIDs) > 0 {
		_, _ = fmt.Fprintf(w, "drifted accounts\t%v\n", report.DriftedIDs)
	}
	return w.Flush()
}

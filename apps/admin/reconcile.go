package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

// reconcile rebuilds the cached monthly total of one or every active teacher from their daily entries.
// A zero month means the current one.
func (cli *commandLine) reconcile(month core.Month, uname string) error {
	ctx := context.Background()

	var teachers []teacher.Teacher
	if uname != "" {
		t, err := cli.teachers.GetByUsername(ctx, uname)
		if err != nil {
			return err
		}
		teachers = append(teachers, t)
	} else {
		var err error
		if teachers, err = cli.teachers.QueryActive(ctx); err != nil {
			return errors.Wrap(err, "querying active teachers")
		}
	}

	fixed := 0
	for _, t := range teachers {
		report, err := cli.ledger.Reconcile(ctx, t.ID, month)
		if err != nil {
			return errors.Wrapf(err, "reconciling %s", t.Username)
		}
		status := "ok"
		if report.Reconciled {
			status = fmt.Sprintf("fixed (was %d)", report.Cached)
			fixed++
		}
		fmt.Fprintf(cli.out, "%s\t%s\t%d\t%s\n", t.Username, report.Month, report.Total, status)
	}
	fmt.Fprintf(cli.out, "%d teacher(s) checked, %d fixed\n", len(teachers), fixed)
	return nil
}

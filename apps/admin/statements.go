package main

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
)

const statementTemplate = "monthly_statement"

type statementData struct {
	Name    string
	Month   core.Month
	Total   int
	Entries []ledger.DailyHourEntry
}

// sendStatements emails the hours statement of `month` to every active teacher having an email address.
func (cli *commandLine) sendStatements(month core.Month) error {
	ctx := context.Background()
	teachers, err := cli.teachers.QueryActive(ctx)
	if err != nil {
		return errors.Wrap(err, "querying active teachers")
	}

	messages := make([]*core.EmailMessage, 0, len(teachers))
	for _, t := range teachers {
		if t.Email == "" {
			continue
		}
		msg, err := cli.statement(ctx, t, month)
		if err != nil {
			return errors.Wrapf(err, "preparing statement of %s", t.Username)
		}
		messages = append(messages, msg)
	}

	cli.mailer.SendMessages(messages...)
	fmt.Fprintf(cli.out, "%d statement(s) sent for %s\n", len(messages), month)
	return nil
}

func (cli *commandLine) statement(ctx context.Context, t teacher.Teacher, month core.Month) (*core.EmailMessage, error) {
	entries, err := cli.ledger.DailyEntries(ctx, t.ID, month)
	if err != nil {
		return nil, err
	}
	report := ledger.MonthlyReport{TeacherID: t.ID, Month: month, Entries: entries}
	for _, e := range entries {
		report.Total += e.HoursAdded
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: t.FullName(), Address: t.Email}},
		Subject:      fmt.Sprintf("Hours statement for %s", month),
		TemplateName: statementTemplate,
		TemplateData: statementData{
			Name:    t.FirstName,
			Month:   month,
			Total:   report.Total,
			Entries: entries,
		},
	}

	wb, err := exportsvc.HoursWorkbook(t, report)
	if err != nil {
		return nil, err
	}
	if err := msg.Attach(wb, exportsvc.HoursFilename(t, month, "xlsx"), exportsvc.XLSXContentType); err != nil {
		return nil, err
	}
	return msg, nil
}

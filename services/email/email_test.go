package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
)

type statementData struct {
	Name    string
	Month   core.Month
	Total   int
	Entries []ledger.DailyHourEntry
}

func newStatement(t *testing.T) *core.EmailMessage {
	t.Helper()
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Dana Levi", Address: "dlevi@school.test"}},
		Subject:      "Hours statement",
		TemplateName: "monthly_statement",
		TemplateData: statementData{
			Name:  "Dana",
			Month: core.Month{Year: 2024, Month: 3},
			Total: 5,
			Entries: []ledger.DailyHourEntry{
				{Date: core.NewDate(2024, 3, 4), HoursAdded: 2},
				{Date: core.NewDate(2024, 3, 5), HoursAdded: 3},
			},
		},
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("a,b\n1,2\n"), "hours.csv", "text/csv"))
	return msg
}

func TestServiceMock_SendMessages(t *testing.T) {
	logger := logsvc.NewNopLogger()
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(logger, true)

	svc := NewServiceMock(conf, logger)
	svc.SendMessages(newStatement(t), &core.EmailMessage{Subject: "nobody"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Contains(t, msg.TextContent, "Hello Dana,")
	assert.Contains(t, msg.TextContent, "Total hours: 5")
	assert.Contains(t, msg.TextContent, "2024-03-05: 3h")
	assert.Contains(t, msg.TextContent, conf.AppName)
	assert.Contains(t, msg.HTMLContent, "2024-03")

	body, err := svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Mahudhurio] Hours statement")
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "filename=hours.csv")
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, logsvc.NewNopLogger()).(*sendgridService)

	msg := newStatement(t)
	msg.Cc = []mail.Address{{Address: "office@school.test"}}
	msg.TextContent = "text"

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Mahudhurio] Hours statement", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "dlevi@school.test", p.To[0].Address)
	require.Len(t, p.CC, 1)
	assert.Equal(t, "office@school.test", p.CC[0].Address)

	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Content, 1) // no html content
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "hours.csv", m.Attachments[0].Filename)
	assert.Equal(t, "attachment", m.Attachments[0].Disposition)
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// EmailSender is the part of the Resend client the mailer needs.
type EmailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ReportMailerConfig struct {
	From string
	To   []string
}

// ReportMailer emails the final standings to the league operators.
type ReportMailer struct {
	cfg    ReportMailerConfig
	sender EmailSender
	tmpl   *template.Template
	logger *slog.Logger
}

// NewResendReportMailer builds a mailer on top of the Resend API.
func NewResendReportMailer(apiKey string, cfg ReportMailerConfig, logger *slog.Logger) *ReportMailer {
	return NewReportMailer(resend.NewClient(apiKey).Emails, cfg, logger)
}

func NewReportMailer(sender EmailSender, cfg ReportMailerConfig, logger *slog.Logger) *ReportMailer {
	return &ReportMailer{
		cfg:    cfg,
		sender: sender,
		tmpl:   template.Must(template.New("league_report").Parse(leagueReportTemplate)),
		logger: logger,
	}
}

func (m *ReportMailer) PublishReport(_ context.Context, report *LeagueReport) error {
	if len(m.cfg.To) == 0 {
		return errors.New("report mailer has no recipients")
	}
	body, err := m.GenerateEmailBody(report)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    m.cfg.From,
		To:      m.cfg.To,
		Subject: fmt.Sprintf("League %s completed", report.LeagueID),
		Html:    body,
	}
	sent, err := m.sender.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send league report email: %w", err)
	}
	m.logger.Info("league report emailed", slog.String("email_id", sent.Id), slog.Int("recipients", len(m.cfg.To)))
	return nil
}

func (m *ReportMailer) GenerateEmailBody(report *LeagueReport) (string, error) {
	var body bytes.Buffer
	if err := m.tmpl.Execute(&body, report); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона отчёта: %w", err)
	}
	return body.String(), nil
}

const leagueReportTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h2>League {{.LeagueID}} is complete</h2>
  <p>Game: {{.GameType}}. Rounds: {{.TotalRounds}}. Matches: {{.TotalMatches}}.</p>
  {{with .Champion}}<p>Champion: <b>{{.DisplayName}}</b> ({{.ParticipantID}}) with {{.Points}} points.</p>{{end}}
  <table border="1" cellpadding="4" cellspacing="0">
    <tr><th>Rank</th><th>Player</th><th>Played</th><th>W</th><th>D</th><th>L</th><th>Pts</th></tr>
    {{range .Standings}}<tr><td>{{.Rank}}</td><td>{{.DisplayName}} ({{.ParticipantID}})</td><td>{{.Played}}</td><td>{{.Wins}}</td><td>{{.Draws}}</td><td>{{.Losses}}</td><td>{{.Points}}</td></tr>
    {{end}}
  </table>
  <p>Run {{.RunID}}</p>
</body>
</html>`

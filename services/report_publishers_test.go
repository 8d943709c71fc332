package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/storage"
)

func sampleReport() *LeagueReport {
	champion := models.Standing{ParticipantID: "P01", DisplayName: "Alice", Played: 3, Wins: 3, Points: 9, Rank: 1}
	return &LeagueReport{
		LeagueID:     "league_test",
		RunID:        "run-1",
		GameType:     "even_odd",
		CompletedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TotalRounds:  3,
		TotalMatches: 6,
		Champion:     &champion,
		Standings: []models.Standing{
			champion,
			{ParticipantID: "P02", DisplayName: "Bob", Played: 3, Losses: 3, Rank: 2},
		},
	}
}

type fakeEmailSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeEmailSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func TestReportMailerSendsStandings(t *testing.T) {
	sender := &fakeEmailSender{}
	mailer := NewReportMailer(sender, ReportMailerConfig{From: "league@example.com", To: []string{"ops@example.com"}}, discardLogger())

	require.NoError(t, mailer.PublishReport(context.Background(), sampleReport()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "league@example.com", msg.From)
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Equal(t, "League league_test completed", msg.Subject)
	assert.Contains(t, msg.Html, "Champion: <b>Alice</b> (P01) with 9 points.")
	assert.Contains(t, msg.Html, "Bob (P02)")
}

func TestReportMailerErrors(t *testing.T) {
	noRecipients := NewReportMailer(&fakeEmailSender{}, ReportMailerConfig{From: "league@example.com"}, discardLogger())
	assert.Error(t, noRecipients.PublishReport(context.Background(), sampleReport()))

	boom := errors.New("rate limited")
	failing := NewReportMailer(&fakeEmailSender{err: boom}, ReportMailerConfig{To: []string{"ops@example.com"}}, discardLogger())
	assert.ErrorIs(t, failing.PublishReport(context.Background(), sampleReport()), boom)
}

type fakeUploader struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(_ context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.key, f.contentType, f.body = key, contentType, body
	return &storage.UploadResult{Key: key, Location: f.GetPublicURL(key)}, nil
}

func (f *fakeUploader) Delete(context.Context, string) error { return nil }

func (f *fakeUploader) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

func TestReportArchiverUploadsJSON(t *testing.T) {
	uploader := &fakeUploader{}
	archiver := NewReportArchiver(uploader, discardLogger())
	report := sampleReport()

	require.NoError(t, archiver.PublishReport(context.Background(), report))
	assert.Equal(t, "leagues/league_test/run-1.json", uploader.key)
	assert.Equal(t, "application/json", uploader.contentType)

	var decoded LeagueReport
	require.NoError(t, json.Unmarshal(uploader.body, &decoded))
	assert.Equal(t, "league_test", decoded.LeagueID)
	assert.Equal(t, "P01", decoded.Champion.ParticipantID)
	assert.Len(t, decoded.Standings, 2)
}

func TestReportArchiverSurfacesUploadErrors(t *testing.T) {
	boom := errors.New("bucket gone")
	archiver := NewReportArchiver(&fakeUploader{err: boom}, discardLogger())
	assert.ErrorIs(t, archiver.PublishReport(context.Background(), sampleReport()), boom)
}

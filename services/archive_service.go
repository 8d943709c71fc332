package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/agent-league/storage"
)

const reportContentType = "application/json"

// ReportArchiver uploads the final league report as JSON to object storage.
type ReportArchiver struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewReportArchiver(uploader storage.FileUploader, logger *slog.Logger) *ReportArchiver {
	return &ReportArchiver{uploader: uploader, logger: logger}
}

// ReportKey is the object key a league run is archived under.
func ReportKey(report *LeagueReport) string {
	return fmt.Sprintf("leagues/%s/%s.json", report.LeagueID, report.RunID)
}

func (a *ReportArchiver) PublishReport(ctx context.Context, report *LeagueReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode league report: %w", err)
	}
	res, err := a.uploader.Upload(ctx, ReportKey(report), reportContentType, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	a.logger.Info("league report archived", slog.String("key", res.Key), slog.String("url", res.Location))
	return nil
}

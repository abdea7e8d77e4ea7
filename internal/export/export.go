// Package export builds the monthly report PDF: the expense sheet exported
// as PDF, followed by one page section per receipt, merged with page numbers
// and an outline, then uploaded back into the month's Drive folder.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/keihibot/keihi/internal/drive"
	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
	"github.com/keihibot/keihi/internal/pdfgen"
	"github.com/keihibot/keihi/internal/pdfmerge"
	"github.com/keihibot/keihi/internal/sheet"
)

// sheetBookmarkTitle labels the expense sheet section of the report outline.
const sheetBookmarkTitle = "経費明細"

// defaultExportBase is the spreadsheet export endpoint.
const defaultExportBase = "https://docs.google.com"

// SheetSource resolves the month's worksheet within a spreadsheet.
type SheetSource interface {
	Lookup(ctx context.Context, spreadsheetID string, ym month.YearMonth) (sheet.Info, error)
}

// DriveSource is the Drive surface the exporter needs.
type DriveSource interface {
	MonthFolder(ctx context.Context, userID string, ym month.YearMonth) (string, error)
	ListReceipts(ctx context.Context, folderID, excludeName string) ([]drive.FileInfo, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	UploadFile(ctx context.Context, userID string, ym month.YearMonth, content []byte, fileName, mimeType string) (*drive.FileInfo, error)
}

// Report is a finished monthly report.
type Report struct {
	Name     string
	Data     []byte
	Link     string // webViewLink of the uploaded report
	Receipts int    // receipt sections included
}

// Exporter orchestrates report builds.
type Exporter struct {
	settings sheet.SettingsSource
	sheets   SheetSource
	drive    DriveSource
	client   *http.Client // authenticated; used for the sheet export URL
	baseURL  string

	spoolDir string              // local copy of each report, "" disables
	register func(string) error // registers spooled files for the cleanup loop
}

// NewExporter builds an Exporter. client must carry the service account
// credentials, since the export endpoint enforces the same ACL as the API.
func NewExporter(settings sheet.SettingsSource, sheets SheetSource, driveSrc DriveSource, client *http.Client) *Exporter {
	return &Exporter{
		settings: settings,
		sheets:   sheets,
		drive:    driveSrc,
		client:   client,
		baseURL:  defaultExportBase,
	}
}

// WithBaseURL overrides the spreadsheet export endpoint.
func (e *Exporter) WithBaseURL(u string) *Exporter {
	e.baseURL = u
	return e
}

// WithSpool keeps a local copy of each built report under dir, registered
// through register so the cleanup loop removes it later. register may be nil.
func (e *Exporter) WithSpool(dir string, register func(string) error) *Exporter {
	e.spoolDir = dir
	e.register = register
	return e
}

// ReportName returns the report file name for a month, e.g. "keihi_2025_02.pdf".
func ReportName(ym month.YearMonth) string {
	return fmt.Sprintf("keihi_%s.pdf", ym.SheetName())
}

// Export builds the report for a user's month and uploads it to the month
// folder, overwriting any previous report. Receipts that fail to download,
// convert or parse are skipped with a log line; the sheet section itself is
// mandatory.
func (e *Exporter) Export(ctx context.Context, userID string, ym month.YearMonth) (*Report, error) {
	const op = "export.Export"

	spreadsheetID, err := e.settings.SpreadsheetID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := e.sheets.Lookup(ctx, spreadsheetID, ym)
	if err != nil {
		return nil, keihi.E(keihi.KindNotFound, userID, op, err)
	}

	sheetPDF, err := e.exportSheetPDF(ctx, spreadsheetID, info.ID)
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}
	sheetPages, err := pdfmerge.PageCount(sheetPDF)
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op,
			fmt.Errorf("exported sheet pdf did not parse: %w", err))
	}

	reportName := ReportName(ym)
	folderID, err := e.drive.MonthFolder(ctx, userID, ym)
	if err != nil {
		return nil, err
	}
	receipts, err := e.drive.ListReceipts(ctx, folderID, reportName)
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}

	inputs := [][]byte{sheetPDF}
	bookmarks := []pdfmerge.Bookmark{{Title: sheetBookmarkTitle, Page: 1}}
	page := 1 + sheetPages
	included := 0

	for _, f := range receipts {
		data, err := e.drive.Download(ctx, f.ID)
		if err != nil {
			slog.Warn("skipping receipt: download failed", "user", userID, "file", f.Name, "error", err)
			continue
		}
		if !pdfgen.IsPDF(data) {
			if data, err = pdfgen.ConvertImage(data); err != nil {
				slog.Warn("skipping receipt: not convertible", "user", userID, "file", f.Name, "error", err)
				continue
			}
		}
		n, err := pdfmerge.PageCount(data)
		if err != nil {
			slog.Warn("skipping receipt: corrupt pdf", "user", userID, "file", f.Name, "error", err)
			continue
		}
		inputs = append(inputs, data)
		bookmarks = append(bookmarks, pdfmerge.Bookmark{Title: f.Name, Page: page})
		page += n
		included++
	}

	merged, err := pdfmerge.Merge(inputs, bookmarks)
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, err)
	}
	e.spool(merged)

	uploaded, err := e.drive.UploadFile(ctx, userID, ym, merged, reportName, "application/pdf")
	if err != nil {
		return nil, err
	}

	slog.Info("exported monthly report",
		"user", userID, "month", ym.String(), "receipts", included, "bytes", len(merged))
	return &Report{Name: reportName, Data: merged, Link: uploaded.WebViewLink, Receipts: included}, nil
}

// spool writes a local copy of the report. Best effort; the report already
// lives in Drive.
func (e *Exporter) spool(data []byte) {
	if e.spoolDir == "" {
		return
	}
	if err := os.MkdirAll(e.spoolDir, 0o755); err != nil {
		slog.Warn("creating spool dir failed", "dir", e.spoolDir, "error", err)
		return
	}
	path := filepath.Join(e.spoolDir, uuid.NewString()+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("spooling report copy failed", "path", path, "error", err)
		return
	}
	if e.register != nil {
		if err := e.register(path); err != nil {
			slog.Warn("registering spooled report failed", "path", path, "error", err)
		}
	}
}

// exportSheetPDF fetches the worksheet rendered as an A4 portrait PDF through
// the spreadsheet export endpoint, scoped to the entry window.
func (e *Exporter) exportSheetPDF(ctx context.Context, spreadsheetID string, sheetID int64) ([]byte, error) {
	url := fmt.Sprintf(
		"%s/spreadsheets/d/%s/export?format=pdf&gid=%d&size=A4&portrait=true&gridlines=false&range=A1:G27",
		e.baseURL, spreadsheetID, sheetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching sheet pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet pdf export returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading sheet pdf: %w", err)
	}
	return data, nil
}

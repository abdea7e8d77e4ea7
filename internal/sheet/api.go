// Package sheet implements the expense sheet logic: locating or creating the
// monthly worksheet, allocating entry rows, writing entries, and aggregating
// status over the entry window.
package sheet

import (
	"context"
	"errors"
	"fmt"

	gapi "google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// Info describes a worksheet within a spreadsheet.
type Info struct {
	ID    int64
	Title string
}

// API is the narrow spreadsheet surface the services need. The production
// implementation wraps the Sheets API; tests substitute a fake.
type API interface {
	// SheetList returns all worksheets of a spreadsheet.
	SheetList(ctx context.Context, spreadsheetID string) ([]Info, error)
	// DuplicateSheet copies a worksheet and returns the new sheet ID.
	DuplicateSheet(ctx context.Context, spreadsheetID string, sourceSheetID int64, newTitle string) (int64, error)
	// Values reads a range. Trailing empty rows and cells are absent, per the
	// Sheets values contract.
	Values(ctx context.Context, spreadsheetID, valueRange string) ([][]string, error)
	// UpdateValues writes a range with USER_ENTERED input semantics.
	UpdateValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error
	// AppendValues appends rows after the last data row of a range.
	AppendValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error
}

// ErrSpreadsheetNotFound indicates the configured spreadsheet ID does not
// resolve, or the service account has no access to it.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found or not shared with the bot")

type googleAPI struct {
	svc *sheets.Service
}

// NewAPI wraps a Sheets service client.
func NewAPI(svc *sheets.Service) API {
	return &googleAPI{svc: svc}
}

func (g *googleAPI) SheetList(ctx context.Context, spreadsheetID string) ([]Info, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "getting spreadsheet")
	}
	infos := make([]Info, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		infos = append(infos, Info{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return infos, nil
}

func (g *googleAPI) DuplicateSheet(ctx context.Context, spreadsheetID string, sourceSheetID int64, newTitle string) (int64, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DuplicateSheet: &sheets.DuplicateSheetRequest{
				SourceSheetId: sourceSheetID,
				NewSheetName:  newTitle,
			},
		}},
	}
	resp, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, mapError(err, "duplicating sheet")
	}
	if len(resp.Replies) == 0 || resp.Replies[0].DuplicateSheet == nil || resp.Replies[0].DuplicateSheet.Properties == nil {
		return 0, fmt.Errorf("duplicating sheet: empty reply")
	}
	return resp.Replies[0].DuplicateSheet.Properties.SheetId, nil
}

func (g *googleAPI) Values(ctx context.Context, spreadsheetID, valueRange string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, valueRange).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err, "reading values")
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows, nil
}

func (g *googleAPI) UpdateValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, valueRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return mapError(err, "updating values")
	}
	return nil
}

func (g *googleAPI) AppendValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := g.svc.Spreadsheets.Values.Append(spreadsheetID, valueRange, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return mapError(err, "appending values")
	}
	return nil
}

func mapError(err error, op string) error {
	var apiErr *gapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 403) {
		return fmt.Errorf("%s: %w: %v", op, ErrSpreadsheetNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// URL returns the browser URL of a spreadsheet, anchored at a worksheet when
// sheetID is non-negative.
func URL(spreadsheetID string, sheetID int64) string {
	if sheetID < 0 {
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", spreadsheetID)
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}

package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
)

// Monthly sheet layout. Each month's worksheet is cloned from the _base
// template: the No column (A) is pre-filled for the 25 entry rows, C27 holds
// the total formula, D3 the first calendar day, G3 an optional folder link.
const (
	BaseSheetTitle = "_base"

	entryStartRow = 2
	entryEndRow   = 26

	// EntryCapacity is the number of entry rows per monthly sheet.
	EntryCapacity = entryEndRow - entryStartRow + 1

	firstDayCell   = "D3"
	firstDayRow    = 3
	folderLinkCell = "G3"
	totalCell      = "C27"

	// DateLayout is the date format written into entry rows.
	DateLayout = "2006/01/02"
)

// Sentinel errors for sheet resolution and allocation.
var (
	// ErrSheetFull indicates the 25-row entry window is exhausted. This is a
	// capacity condition, not a failure: AddEntry converts it into a
	// Result{OK: false} so callers can direct the user to a new sheet.
	ErrSheetFull = errors.New("no empty entry row left")

	// ErrSheetNotFound indicates no worksheet exists for the month.
	ErrSheetNotFound = errors.New("monthly sheet not found")
)

// SettingsSource resolves a user's target spreadsheet.
type SettingsSource interface {
	SpreadsheetID(ctx context.Context, userID string) (string, error)
}

// FolderResolver resolves the Drive folder URL for a user's month, used for
// the G3 hyperlink on newly created sheets. May be absent.
type FolderResolver interface {
	MonthFolderURL(ctx context.Context, userID string, ym month.YearMonth) (string, error)
}

// Service implements the monthly-sheet operations.
type Service struct {
	api      API
	settings SettingsSource
	folders  FolderResolver // nil disables the G3 hyperlink
}

// NewService builds a Service. folders may be nil.
func NewService(api API, settings SettingsSource, folders FolderResolver) *Service {
	return &Service{api: api, settings: settings, folders: folders}
}

// EntryInput is one expense entry to record.
type EntryInput struct {
	UserID  string
	Date    string // DateLayout, determines the target month
	Amount  int
	Details string
	Memo    string
	FileURL string // receipt link, optional
}

// Result is the outcome of AddEntry. OK is false when the sheet is full;
// SheetURL is always set once the target sheet is known.
type Result struct {
	OK       bool
	Message  string
	SheetURL string
	Row      int
}

// Lookup finds the worksheet for a month, accepting legacy titles.
func (s *Service) Lookup(ctx context.Context, spreadsheetID string, ym month.YearMonth) (Info, error) {
	infos, err := s.api.SheetList(ctx, spreadsheetID)
	if err != nil {
		return Info{}, err
	}
	for _, info := range infos {
		if ym.MatchSheetTitle(info.Title) {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("%w: %s", ErrSheetNotFound, ym.SheetName())
}

// GetOrCreateSheet returns the worksheet for a month, duplicating the _base
// template when the month has no sheet yet. The second return value reports
// whether a new sheet was created.
func (s *Service) GetOrCreateSheet(ctx context.Context, userID, spreadsheetID string, ym month.YearMonth) (Info, bool, error) {
	const op = "sheet.GetOrCreateSheet"

	infos, err := s.api.SheetList(ctx, spreadsheetID)
	if err != nil {
		return Info{}, false, keihi.E(keihi.KindOperation, userID, op, err)
	}

	var base *Info
	for i, info := range infos {
		if ym.MatchSheetTitle(info.Title) {
			return info, false, nil
		}
		if info.Title == BaseSheetTitle {
			base = &infos[i]
		}
	}
	if base == nil {
		// Fatal for this user's month until the template is restored.
		return Info{}, false, keihi.Ef(keihi.KindConfig, userID, op,
			"template sheet %q is missing from the spreadsheet", BaseSheetTitle)
	}

	title := ym.SheetName()
	newID, err := s.api.DuplicateSheet(ctx, spreadsheetID, base.ID, title)
	if err != nil {
		return Info{}, false, keihi.E(keihi.KindOperation, userID, op, err)
	}
	info := Info{ID: newID, Title: title}

	if err := s.api.UpdateValues(ctx, spreadsheetID, cellRange(title, firstDayCell),
		[][]any{{ym.FirstDayString()}}); err != nil {
		return Info{}, false, keihi.E(keihi.KindOperation, userID, op, err)
	}

	// The folder hyperlink is decoration; a failure here must not block the
	// entry being recorded.
	if s.folders != nil {
		if url, err := s.folders.MonthFolderURL(ctx, userID, ym); err != nil {
			slog.Warn("skipping folder hyperlink", "user", userID, "month", ym.String(), "error", err)
		} else if err := s.api.UpdateValues(ctx, spreadsheetID, cellRange(title, folderLinkCell),
			[][]any{{hyperlink(url, "領収書フォルダ")}}); err != nil {
			slog.Warn("writing folder hyperlink", "user", userID, "month", ym.String(), "error", err)
		}
	}

	slog.Info("created monthly sheet", "user", userID, "title", title, "sheet_id", newID)
	return info, true, nil
}

// FindEmptyRow returns the lowest entry row whose No column is pre-filled and
// whose data columns B-E are all blank. Returns ErrSheetFull when the window
// is exhausted.
func (s *Service) FindEmptyRow(ctx context.Context, spreadsheetID, title string) (int, error) {
	rows, err := s.api.Values(ctx, spreadsheetID, entryRange(title))
	if err != nil {
		return 0, err
	}
	for i := 0; i < EntryCapacity; i++ {
		var row []string
		if i < len(rows) {
			row = rows[i]
		}
		if cell(row, 0) == "" {
			// Not a templated entry row.
			continue
		}
		// D3 carries the month's first day written at sheet creation; it does
		// not mark row 3 as occupied. An entry allocated there overwrites it.
		detailsBlank := cell(row, 3) == ""
		if entryStartRow+i == firstDayRow {
			detailsBlank = true
		}
		if cell(row, 1) == "" && cell(row, 2) == "" && detailsBlank && cell(row, 4) == "" {
			return entryStartRow + i, nil
		}
	}
	return 0, ErrSheetFull
}

// AddEntry resolves the user's spreadsheet, allocates a row and writes the
// entry. A full sheet yields Result{OK: false}, not an error.
//
// Allocation is find-then-write with no transaction; two concurrent
// submissions for the same month can claim the same row. The window is
// accepted: the underlying store offers no conditional update.
func (s *Service) AddEntry(ctx context.Context, in EntryInput) (*Result, error) {
	const op = "sheet.AddEntry"

	date, err := time.Parse(DateLayout, in.Date)
	if err != nil {
		return nil, keihi.Ef(keihi.KindValidation, in.UserID, op, "invalid date %q", in.Date)
	}
	ym := month.FromTime(date)

	spreadsheetID, err := s.settings.SpreadsheetID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	info, _, err := s.GetOrCreateSheet(ctx, in.UserID, spreadsheetID, ym)
	if err != nil {
		return nil, err
	}
	sheetURL := URL(spreadsheetID, info.ID)

	row, err := s.FindEmptyRow(ctx, spreadsheetID, info.Title)
	if errors.Is(err, ErrSheetFull) {
		return &Result{
			OK:       false,
			Message:  fmt.Sprintf("%s は%d行すべて記入済みです。新しいシートを作成してください。", info.Title, EntryCapacity),
			SheetURL: sheetURL,
		}, nil
	}
	if err != nil {
		return nil, keihi.E(keihi.KindOperation, in.UserID, op, err)
	}

	memoCell := in.Memo
	if in.FileURL != "" {
		if memoCell != "" {
			memoCell += " " + in.FileURL
		} else {
			memoCell = in.FileURL
		}
	}

	rng := fmt.Sprintf("'%s'!B%d:E%d", info.Title, row, row)
	values := [][]any{{in.Date, in.Amount, in.Details, memoCell}}
	if err := s.api.UpdateValues(ctx, spreadsheetID, rng, values); err != nil {
		return nil, keihi.E(keihi.KindOperation, in.UserID, op, err)
	}

	if in.FileURL != "" {
		linkRng := fmt.Sprintf("'%s'!G%d", info.Title, row)
		if err := s.api.UpdateValues(ctx, spreadsheetID, linkRng,
			[][]any{{hyperlink(in.FileURL, "領収書")}}); err != nil {
			return nil, keihi.E(keihi.KindOperation, in.UserID, op, err)
		}
	}

	slog.Info("recorded entry", "user", in.UserID, "sheet", info.Title, "row", row, "amount", in.Amount)
	return &Result{OK: true, Row: row, SheetURL: sheetURL}, nil
}

func entryRange(title string) string {
	return fmt.Sprintf("'%s'!A%d:E%d", title, entryStartRow, entryEndRow)
}

func cellRange(title, cellRef string) string {
	return fmt.Sprintf("'%s'!%s", title, cellRef)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func hyperlink(url, label string) string {
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, url, label)
}

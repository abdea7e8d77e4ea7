package sheet

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
)

// Entry is one recorded expense row.
type Entry struct {
	No          int
	Date        string
	Amount      int
	ValidAmount bool // false when the amount cell did not parse
	Details     string
	Memo        string
}

// Status summarizes a monthly sheet.
type Status struct {
	YearMonth month.YearMonth
	Entries   []Entry
	Count     int
	Remaining int
	Total     int
	SheetURL  string
}

// Status aggregates the entry window of the user's sheet for a month.
// The entry rows and the total cell are fetched concurrently. The total is
// taken from the C27 formula cell when it parses; otherwise it falls back to
// summing the parsed entry amounts, so a blank or broken formula cell never
// reports a zero month.
func (s *Service) Status(ctx context.Context, userID string, ym month.YearMonth) (*Status, error) {
	const op = "sheet.Status"

	spreadsheetID, err := s.settings.SpreadsheetID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := s.Lookup(ctx, spreadsheetID, ym)
	if err != nil {
		return nil, keihi.E(keihi.KindNotFound, userID, op, err)
	}

	var (
		wg        sync.WaitGroup
		rows      [][]string
		rowsErr   error
		totalRaw  string
		totalErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		rows, rowsErr = s.api.Values(ctx, spreadsheetID, entryRange(info.Title))
	}()
	go func() {
		defer wg.Done()
		var cells [][]string
		cells, totalErr = s.api.Values(ctx, spreadsheetID, cellRange(info.Title, totalCell))
		if totalErr == nil && len(cells) > 0 && len(cells[0]) > 0 {
			totalRaw = cells[0][0]
		}
	}()
	wg.Wait()
	if rowsErr != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, rowsErr)
	}
	if totalErr != nil {
		return nil, keihi.E(keihi.KindOperation, userID, op, totalErr)
	}

	st := &Status{
		YearMonth: ym,
		SheetURL:  URL(spreadsheetID, info.ID),
	}

	sum := 0
	for i, row := range rows {
		if cell(row, 0) == "" {
			continue
		}
		// Same exemption as FindEmptyRow: the first-day value in D3 alone does
		// not make row 3 an entry.
		details := cell(row, 3)
		if entryStartRow+i == firstDayRow && cell(row, 1) == "" && cell(row, 2) == "" && cell(row, 4) == "" {
			details = ""
		}
		if cell(row, 1) == "" && cell(row, 2) == "" && details == "" && cell(row, 4) == "" {
			continue
		}
		// The No column is pre-filled by the template and need not start at 1.
		no := i + 1
		if n, err := strconv.Atoi(strings.TrimSpace(cell(row, 0))); err == nil {
			no = n
		}
		e := Entry{
			No:      no,
			Date:    cell(row, 1),
			Details: cell(row, 3),
			Memo:    cell(row, 4),
		}
		if n, err := ParseAmount(cell(row, 2)); err == nil {
			e.Amount = n
			e.ValidAmount = true
			sum += n
		} else {
			slog.Warn("unparsable amount cell excluded from total",
				"user", userID, "sheet", info.Title, "row", entryStartRow+i, "value", cell(row, 2))
		}
		st.Entries = append(st.Entries, e)
	}
	st.Count = len(st.Entries)
	st.Remaining = EntryCapacity - st.Count

	if total, err := ParseAmount(totalRaw); err == nil {
		st.Total = total
	} else {
		st.Total = sum
	}

	return st, nil
}

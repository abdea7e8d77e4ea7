package sheet

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// fakeAPI is an in-memory spreadsheet: one grid per worksheet, addressed by
// A1-style references. It mimics the values contract of the real API,
// including trimming of trailing empty rows and cells.
type fakeAPI struct {
	sheets []Info
	grids  map[string]map[string]string // title -> "A2" -> value
	nextID int64
	calls  []string
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{grids: map[string]map[string]string{}, nextID: 100}
	f.addSheet(BaseSheetTitle, templateGrid())
	return f
}

// templateGrid pre-fills the No column for the 25 entry rows, as the _base
// template does.
func templateGrid() map[string]string {
	g := map[string]string{}
	for i := 0; i < EntryCapacity; i++ {
		g[fmt.Sprintf("A%d", entryStartRow+i)] = strconv.Itoa(i + 1)
	}
	g[totalCell] = "¥0"
	return g
}

func (f *fakeAPI) addSheet(title string, grid map[string]string) Info {
	f.nextID++
	info := Info{ID: f.nextID, Title: title}
	f.sheets = append(f.sheets, info)
	f.grids[title] = grid
	return info
}

func (f *fakeAPI) SheetList(ctx context.Context, spreadsheetID string) ([]Info, error) {
	f.calls = append(f.calls, "SheetList")
	return append([]Info(nil), f.sheets...), nil
}

func (f *fakeAPI) DuplicateSheet(ctx context.Context, spreadsheetID string, sourceSheetID int64, newTitle string) (int64, error) {
	f.calls = append(f.calls, "DuplicateSheet "+newTitle)
	for _, s := range f.sheets {
		if s.ID == sourceSheetID {
			grid := map[string]string{}
			for k, v := range f.grids[s.Title] {
				grid[k] = v
			}
			return f.addSheet(newTitle, grid).ID, nil
		}
	}
	return 0, fmt.Errorf("source sheet %d not found", sourceSheetID)
}

var rangeRe = regexp.MustCompile(`^'?([^'!]+)'?!([A-Z]+)(\d+)(?::([A-Z]+)(\d+))?$`)

func parseRange(rng string) (title string, c1, r1, c2, r2 int, err error) {
	m := rangeRe.FindStringSubmatch(rng)
	if m == nil {
		return "", 0, 0, 0, 0, fmt.Errorf("unsupported range %q", rng)
	}
	title = m[1]
	c1 = colIndex(m[2])
	r1, _ = strconv.Atoi(m[3])
	c2, r2 = c1, r1
	if m[4] != "" {
		c2 = colIndex(m[4])
		r2, _ = strconv.Atoi(m[5])
	}
	return title, c1, r1, c2, r2, nil
}

func colIndex(col string) int {
	n := 0
	for _, r := range col {
		n = n*26 + int(r-'A') + 1
	}
	return n
}

func colName(i int) string {
	return string(rune('A' + i - 1)) // single letter is enough here
}

func (f *fakeAPI) Values(ctx context.Context, spreadsheetID, valueRange string) ([][]string, error) {
	title, c1, r1, c2, r2, err := parseRange(valueRange)
	if err != nil {
		return nil, err
	}
	grid, ok := f.grids[title]
	if !ok {
		return nil, fmt.Errorf("no sheet %q", title)
	}
	var rows [][]string
	for r := r1; r <= r2; r++ {
		var row []string
		for c := c1; c <= c2; c++ {
			row = append(row, grid[fmt.Sprintf("%s%d", colName(c), r)])
		}
		for len(row) > 0 && row[len(row)-1] == "" {
			row = row[:len(row)-1]
		}
		rows = append(rows, row)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (f *fakeAPI) UpdateValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error {
	f.calls = append(f.calls, "UpdateValues "+valueRange)
	title, c1, r1, _, _, err := parseRange(valueRange)
	if err != nil {
		return err
	}
	grid, ok := f.grids[title]
	if !ok {
		return fmt.Errorf("no sheet %q", title)
	}
	for i, row := range values {
		for j, v := range row {
			grid[fmt.Sprintf("%s%d", colName(c1+j), r1+i)] = fmt.Sprint(v)
		}
	}
	return nil
}

func (f *fakeAPI) AppendValues(ctx context.Context, spreadsheetID, valueRange string, values [][]any) error {
	f.calls = append(f.calls, "AppendValues "+valueRange)
	title, c1, r1, c2, _, err := parseRange(valueRange)
	if err != nil {
		return err
	}
	grid, ok := f.grids[title]
	if !ok {
		return fmt.Errorf("no sheet %q", title)
	}
	// Find the first fully empty row at or below the range start.
	row := r1
	for {
		empty := true
		for c := c1; c <= c2; c++ {
			if grid[fmt.Sprintf("%s%d", colName(c), row)] != "" {
				empty = false
				break
			}
		}
		if empty {
			break
		}
		row++
	}
	for i, vals := range values {
		for j, v := range vals {
			grid[fmt.Sprintf("%s%d", colName(c1+j), row+i)] = fmt.Sprint(v)
		}
	}
	return nil
}

// get reads one cell for assertions.
func (f *fakeAPI) get(title, ref string) string {
	return f.grids[title][ref]
}

// fill marks an entry row as used.
func (f *fakeAPI) fill(title string, row int) {
	grid := f.grids[title]
	grid[fmt.Sprintf("B%d", row)] = "2025/02/01"
	grid[fmt.Sprintf("C%d", row)] = "100"
	grid[fmt.Sprintf("D%d", row)] = "lunch"
}

func (f *fakeAPI) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// fixedSettings maps every user to one spreadsheet.
type fixedSettings struct {
	spreadsheetID string
}

func (s fixedSettings) SpreadsheetID(ctx context.Context, userID string) (string, error) {
	return s.spreadsheetID, nil
}

package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
)

const testSpreadsheetID = "AAAAAAAAAAAAAAAAAAAA"

func newTestService(api *fakeAPI) *Service {
	return NewService(api, fixedSettings{spreadsheetID: testSpreadsheetID}, nil)
}

func TestGetOrCreateSheetCreatesFromTemplate(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	ym := month.YearMonth{Year: 2025, Month: time.February}

	info, created, err := svc.GetOrCreateSheet(context.Background(), "U1", testSpreadsheetID, ym)
	if err != nil {
		t.Fatalf("GetOrCreateSheet: %v", err)
	}
	if !created {
		t.Error("expected a new sheet to be created")
	}
	if info.Title != "2025_02" {
		t.Errorf("Title = %q, want 2025_02", info.Title)
	}
	if got := api.get("2025_02", "D3"); got != "2025/02/01" {
		t.Errorf("D3 = %q, want 2025/02/01", got)
	}
	// Template's No column must carry over.
	if got := api.get("2025_02", "A2"); got != "1" {
		t.Errorf("A2 = %q, want 1", got)
	}
}

func TestGetOrCreateSheetIdempotent(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	ym := month.YearMonth{Year: 2025, Month: time.February}
	ctx := context.Background()

	first, _, err := svc.GetOrCreateSheet(ctx, "U1", testSpreadsheetID, ym)
	if err != nil {
		t.Fatal(err)
	}
	second, created, err := svc.GetOrCreateSheet(ctx, "U1", testSpreadsheetID, ym)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second call must not create another sheet")
	}
	if first.ID != second.ID {
		t.Errorf("sheet IDs differ: %d vs %d", first.ID, second.ID)
	}
}

func TestGetOrCreateSheetAcceptsLegacyTitle(t *testing.T) {
	api := newFakeAPI()
	legacy := api.addSheet("2025-02", templateGrid())
	svc := newTestService(api)

	info, created, err := svc.GetOrCreateSheet(context.Background(), "U1", testSpreadsheetID,
		month.YearMonth{Year: 2025, Month: time.February})
	if err != nil {
		t.Fatal(err)
	}
	if created || info.ID != legacy.ID {
		t.Errorf("expected the legacy-named sheet to be reused, got %+v created=%v", info, created)
	}
}

func TestGetOrCreateSheetMissingTemplate(t *testing.T) {
	api := &fakeAPI{grids: map[string]map[string]string{}}
	svc := newTestService(api)

	_, _, err := svc.GetOrCreateSheet(context.Background(), "U1", testSpreadsheetID,
		month.YearMonth{Year: 2025, Month: time.February})
	if !keihi.IsConfig(err) {
		t.Fatalf("expected a config error for missing _base, got %v", err)
	}
}

func TestFindEmptyRow(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh sheet allocates row 2", func(t *testing.T) {
		api := newFakeAPI()
		api.addSheet("2025_02", templateGrid())
		svc := newTestService(api)
		row, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if err != nil {
			t.Fatal(err)
		}
		if row != 2 {
			t.Errorf("row = %d, want 2", row)
		}
	})

	t.Run("used rows are skipped", func(t *testing.T) {
		api := newFakeAPI()
		api.addSheet("2025_02", templateGrid())
		api.fill("2025_02", 2)
		api.fill("2025_02", 3)
		svc := newTestService(api)
		row, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if err != nil {
			t.Fatal(err)
		}
		if row != 4 {
			t.Errorf("row = %d, want 4", row)
		}
	})

	t.Run("row without No column is not eligible", func(t *testing.T) {
		api := newFakeAPI()
		grid := templateGrid()
		delete(grid, "A2")
		api.addSheet("2025_02", grid)
		svc := newTestService(api)
		row, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if err != nil {
			t.Fatal(err)
		}
		if row != 3 {
			t.Errorf("row = %d, want 3 (row 2 lost its No cell)", row)
		}
	})

	t.Run("the first-day value in D3 does not occupy row 3", func(t *testing.T) {
		api := newFakeAPI()
		grid := templateGrid()
		grid["D3"] = "2025/02/01"
		api.addSheet("2025_02", grid)
		api.fill("2025_02", 2)
		svc := newTestService(api)
		row, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if err != nil {
			t.Fatal(err)
		}
		if row != 3 {
			t.Errorf("row = %d, want 3", row)
		}
	})

	t.Run("a single blank data cell does not qualify a row", func(t *testing.T) {
		api := newFakeAPI()
		grid := templateGrid()
		// Row 2 has a memo only; it is occupied, not empty.
		grid["E2"] = "note"
		api.addSheet("2025_02", grid)
		svc := newTestService(api)
		row, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if err != nil {
			t.Fatal(err)
		}
		if row != 3 {
			t.Errorf("row = %d, want 3", row)
		}
	})

	t.Run("exhausted window", func(t *testing.T) {
		api := newFakeAPI()
		api.addSheet("2025_02", templateGrid())
		for r := 2; r <= 26; r++ {
			api.fill("2025_02", r)
		}
		svc := newTestService(api)
		_, err := svc.FindEmptyRow(ctx, testSpreadsheetID, "2025_02")
		if !errors.Is(err, ErrSheetFull) {
			t.Fatalf("err = %v, want ErrSheetFull", err)
		}
	})
}

func TestAddEntrySequentialRows(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)
	ctx := context.Background()

	first, err := svc.AddEntry(ctx, EntryInput{
		UserID: "U1", Date: "2025/02/01", Amount: 1500, Details: "タクシー",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !first.OK || first.Row != 2 {
		t.Fatalf("first add = %+v, want OK row 2", first)
	}

	second, err := svc.AddEntry(ctx, EntryInput{
		UserID: "U1", Date: "2025/02/03", Amount: 2000, Details: "書籍",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !second.OK || second.Row != 3 {
		t.Fatalf("second add = %+v, want OK row 3", second)
	}

	if got := api.get("2025_02", "C2"); got != "1500" {
		t.Errorf("C2 = %q, want 1500", got)
	}
	if got := api.get("2025_02", "D2"); got != "タクシー" {
		t.Errorf("D2 = %q", got)
	}
}

func TestAddEntrySheetFullIsNotAnError(t *testing.T) {
	api := newFakeAPI()
	grid := templateGrid()
	api.addSheet("2025_02", grid)
	for r := 2; r <= 26; r++ {
		api.fill("2025_02", r)
	}
	svc := newTestService(api)

	res, err := svc.AddEntry(context.Background(), EntryInput{
		UserID: "U1", Date: "2025/02/10", Amount: 500, Details: "コーヒー",
	})
	if err != nil {
		t.Fatalf("a full sheet must not surface as an error, got %v", err)
	}
	if res.OK {
		t.Error("Result.OK = true, want false")
	}
	if res.SheetURL == "" {
		t.Error("Result.SheetURL must be set so the user can be redirected")
	}
	if res.Message == "" {
		t.Error("Result.Message must explain the condition")
	}
}

func TestAddEntryWithReceipt(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(api)

	res, err := svc.AddEntry(context.Background(), EntryInput{
		UserID: "U1", Date: "2025/02/05", Amount: 800, Details: "昼食",
		Memo: "client meeting", FileURL: "https://drive.google.com/file/d/abc/view",
	})
	if err != nil {
		t.Fatal(err)
	}
	memo := api.get("2025_02", fmt.Sprintf("E%d", res.Row))
	if !strings.Contains(memo, "client meeting") || !strings.Contains(memo, "https://drive.google.com/file/d/abc/view") {
		t.Errorf("E%d = %q, want memo and receipt URL", res.Row, memo)
	}
	link := api.get("2025_02", fmt.Sprintf("G%d", res.Row))
	if !strings.Contains(link, "HYPERLINK") {
		t.Errorf("G%d = %q, want a HYPERLINK formula", res.Row, link)
	}
}

func TestAddEntryRejectsBadDate(t *testing.T) {
	svc := newTestService(newFakeAPI())
	_, err := svc.AddEntry(context.Background(), EntryInput{
		UserID: "U1", Date: "02-01", Amount: 100, Details: "x",
	})
	if !keihi.IsValidation(err) {
		t.Fatalf("err = %v, want a validation error", err)
	}
}

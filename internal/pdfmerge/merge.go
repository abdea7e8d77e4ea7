// Package pdfmerge concatenates PDFs into one report document with page
// number footers and an outline entry per section.
package pdfmerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoPages indicates no input survived validation, so there is nothing to
// merge. Unlike an individually corrupt input, this is fatal.
var ErrNoPages = errors.New("no valid pages to merge")

// Bookmark points an outline entry at a 1-indexed page of the merged
// document.
type Bookmark struct {
	Title string
	Page  int
}

// footer renders as "3 / 12" at the bottom center of every page.
const footerDesc = "fontname:Helvetica, points:10, scale:1 abs, pos:bc, off:0 15, rot:0"

// PageCount parses data and returns its page count. An error marks the input
// as corrupt.
func PageCount(data []byte) (int, error) {
	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing pdf: %w", err)
	}
	n := r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}

// Merge concatenates the inputs in order, stamps a "page / total" footer on
// every page, and attaches the given outline entries. Inputs that fail to
// parse, or that pdfcpu refuses to merge, are skipped with a log line; the
// merge only fails when nothing survives. Bookmarks pointing into skipped or out-of-range pages are
// dropped.
func Merge(inputs [][]byte, bookmarks []Bookmark) ([]byte, error) {
	var readers []io.ReadSeeker
	total := 0
	for i, in := range inputs {
		n, err := PageCount(in)
		if err != nil {
			slog.Warn("skipping corrupt pdf during merge", "index", i, "error", err)
			continue
		}
		if err := preflight(in); err != nil {
			slog.Warn("skipping unmergeable pdf", "index", i, "error", err)
			continue
		}
		readers = append(readers, bytes.NewReader(in))
		total += n
	}
	if len(readers) == 0 {
		return nil, ErrNoPages
	}

	var merged bytes.Buffer
	if err := api.MergeRaw(readers, &merged, false, nil); err != nil {
		return nil, fmt.Errorf("merging pdfs: %w", err)
	}

	wm, err := api.TextWatermark("%p / %P", footerDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("building footer stamp: %w", err)
	}
	var stamped bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(merged.Bytes()), &stamped, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("stamping page numbers: %w", err)
	}

	bms := outline(bookmarks, total)
	if len(bms) == 0 {
		return stamped.Bytes(), nil
	}
	var out bytes.Buffer
	if err := api.AddBookmarks(bytes.NewReader(stamped.Bytes()), &out, bms, true, nil); err != nil {
		return nil, fmt.Errorf("adding bookmarks: %w", err)
	}
	return out.Bytes(), nil
}

// preflight merges data with itself into a scratch buffer. A document can
// parse cleanly yet still abort MergeRaw later, e.g. when a page carries a
// broken content stream, so each input has to survive pdfcpu's own read,
// optimize and write paths before it joins the real merge.
func preflight(data []byte) error {
	rs := []io.ReadSeeker{bytes.NewReader(data), bytes.NewReader(data)}
	var scratch bytes.Buffer
	return api.MergeRaw(rs, &scratch, false, nil)
}

// outline converts bookmarks into pdfcpu outline entries, clamping each
// section to end where the next begins.
func outline(bookmarks []Bookmark, totalPages int) []pdfcpu.Bookmark {
	var bms []pdfcpu.Bookmark
	for i, b := range bookmarks {
		if b.Page < 1 || b.Page > totalPages {
			slog.Warn("dropping out-of-range bookmark", "title", b.Title, "page", b.Page)
			continue
		}
		thru := totalPages
		if i+1 < len(bookmarks) && bookmarks[i+1].Page <= totalPages {
			thru = bookmarks[i+1].Page - 1
		}
		if thru < b.Page {
			thru = b.Page
		}
		bms = append(bms, pdfcpu.Bookmark{
			Title:    b.Title,
			PageFrom: b.Page,
			PageThru: thru,
		})
	}
	return bms
}

package ocr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Guess holds the values read out of receipt text. Zero fields mean the text
// gave no usable signal; the user confirms everything in the modal anyway.
type Guess struct {
	Amount    int
	HasAmount bool
	Date      string // "2006/01/02"
}

var (
	amountRe = regexp.MustCompile(`[¥￥]?\s*([0-9][0-9,，]*)\s*円?`)

	// Total lines take precedence over any other amount on the receipt.
	totalLineRe = regexp.MustCompile(`(合計|総額|ご請求|お買上|小計)`)

	dateYMDRe = regexp.MustCompile(`(\d{4})\s*[/\-年.]\s*(\d{1,2})\s*[/\-月.]\s*(\d{1,2})\s*日?`)
	dateMDRe  = regexp.MustCompile(`(\d{1,2})\s*[/月]\s*(\d{1,2})\s*日?`)
)

// ParseReceipt scans OCR text for a yen amount and a date, using now to
// resolve dates without a year.
func ParseReceipt(text string, now time.Time) Guess {
	g := Guess{}
	g.Amount, g.HasAmount = findAmount(text)
	g.Date = findDate(text, now)
	return g
}

// findAmount prefers the amount on a total-keyword line; otherwise it takes
// the largest amount on the receipt, which beats line-item prices and tax
// fragments often enough to be a useful pre-fill.
func findAmount(text string) (int, bool) {
	best, ok := 0, false
	for _, line := range strings.Split(text, "\n") {
		onTotalLine := totalLineRe.MatchString(line)
		for _, m := range amountRe.FindAllStringSubmatch(line, -1) {
			n, err := parseDigits(m[1])
			if err != nil {
				continue
			}
			if onTotalLine {
				return n, true
			}
			if !ok || n > best {
				best, ok = n, true
			}
		}
	}
	return best, ok
}

func findDate(text string, now time.Time) string {
	if m := dateYMDRe.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	if m := dateMDRe.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(strconv.Itoa(now.Year()), m[1], m[2]); ok {
			return d
		}
	}
	return ""
}

func buildDate(y, mo, d string) (string, bool) {
	year, _ := strconv.Atoi(y)
	mon, _ := strconv.Atoi(mo)
	day, _ := strconv.Atoi(d)
	if mon < 1 || mon > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow like Feb 30.
	if int(t.Month()) != mon || t.Day() != day {
		return "", false
	}
	return t.Format("2006/01/02"), true
}

func parseDigits(s string) (int, error) {
	s = strings.NewReplacer(",", "", "，", "").Replace(s)
	return strconv.Atoi(s)
}

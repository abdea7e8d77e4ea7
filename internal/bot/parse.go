package bot

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
	"github.com/keihibot/keihi/internal/sheet"
)

var dateArgRe = regexp.MustCompile(`^\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}$`)

// splitCommand breaks a slash command's text into the subcommand and its
// arguments. Empty text means help.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "help", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// addArgs is the parsed form of `/keihi add`.
type addArgs struct {
	Date    string // sheet.DateLayout
	Amount  int
	Details string
	Memo    string
}

// parseAdd parses `add [date] <amount> <details> [memo...]`. A missing date
// defaults to today. Everything after the details joins into the memo.
func parseAdd(args []string, now time.Time) (addArgs, error) {
	const op = "bot.parseAdd"

	out := addArgs{Date: now.Format(sheet.DateLayout)}
	if len(args) > 0 && dateArgRe.MatchString(args[0]) {
		d, err := parseDateArg(args[0])
		if err != nil {
			return addArgs{}, keihi.Ef(keihi.KindValidation, "", op,
				"日付の形式が正しくありません: %s (例: 2025/02/03)", args[0])
		}
		out.Date = d
		args = args[1:]
	}
	if len(args) < 2 {
		return addArgs{}, keihi.Ef(keihi.KindValidation, "", op,
			"金額と内容を指定してください。例: `/keihi add 1200 ランチ`")
	}

	amount, err := sheet.ParseAmount(args[0])
	if err != nil {
		return addArgs{}, keihi.Ef(keihi.KindValidation, "", op,
			"金額を認識できませんでした: %s", args[0])
	}
	out.Amount = amount
	out.Details = args[1]
	if len(args) > 2 {
		out.Memo = strings.Join(args[2:], " ")
	}
	return out, nil
}

// parseDateArg normalizes a date argument to the sheet layout.
func parseDateArg(s string) (string, error) {
	norm := strings.NewReplacer("-", "/", ".", "/").Replace(s)
	t, err := time.Parse("2006/1/2", norm)
	if err != nil {
		return "", err
	}
	return t.Format(sheet.DateLayout), nil
}

// parseMonthArg resolves an optional YYYY-MM argument, defaulting to the
// current month.
func parseMonthArg(args []string, now time.Time) (month.YearMonth, error) {
	if len(args) == 0 {
		return month.FromTime(now), nil
	}
	ym, err := month.Parse(args[0])
	if err != nil {
		return month.YearMonth{}, keihi.Ef(keihi.KindValidation, "", "bot.parseMonthArg",
			"月の形式が正しくありません: %s (例: 2025-02)", args[0])
	}
	return ym, nil
}

// sessionKey identifies a pending receipt by user and channel.
func sessionKey(userID, channelID string) string {
	return fmt.Sprintf("%s:%s", userID, channelID)
}

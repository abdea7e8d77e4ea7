// Package botfmt renders user-facing Slack text and modal views. All
// user-visible Japanese strings live here so the dispatcher stays free of
// copy.
package botfmt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
	"github.com/keihibot/keihi/internal/sheet"
	"github.com/keihibot/keihi/internal/settings"
)

// Help is the /keihi help text.
const Help = "*keihi — 経費登録ボット*\n" +
	"`/keihi add <金額> <内容> [メモ]` — 今日の日付で経費を登録\n" +
	"`/keihi add <日付> <金額> <内容> [メモ]` — 日付を指定して登録 (例: 2025/02/03)\n" +
	"`/keihi setup <スプレッドシートID> <メールアドレス>` — 初期設定\n" +
	"`/keihi config` — 現在の設定を表示\n" +
	"`/keihi status [YYYY-MM]` — 月の件数と合計を表示\n" +
	"`/keihi list [YYYY-MM]` — 月の明細を表示\n" +
	"`/keihi export [YYYY-MM]` — 月次レポートPDFを作成\n" +
	"`/keihi help` — このヘルプ\n" +
	"メッセージの「レシート登録」ショートカットで添付画像から登録できます。"

// UnknownCommand is returned for an unrecognized subcommand.
const UnknownCommand = "コマンドを認識できませんでした。`/keihi help` で使い方を確認してください。"

// ExportStarted acknowledges an export before the work happens.
func ExportStarted(ym month.YearMonth) string {
	return fmt.Sprintf("%s のレポートを作成しています。完了したらこのスレッドにお知らせします。", ym.String())
}

// ExportDone announces a finished report.
func ExportDone(ym month.YearMonth, link string) string {
	s := fmt.Sprintf("%s のレポートができました。", ym.String())
	if link != "" {
		s += "\n" + link
	}
	return s
}

// SetupDone confirms saved settings.
func SetupDone(us *settings.UserSettings) string {
	return fmt.Sprintf("設定を保存しました。\nスプレッドシート: `%s`\nメール: %s",
		us.SpreadsheetID, us.Email)
}

// ConfigView renders the current settings.
func ConfigView(us *settings.UserSettings) string {
	return fmt.Sprintf("*現在の設定*\nスプレッドシート: `%s`\nメール: %s\n登録日時: %s",
		us.SpreadsheetID, us.Email, us.CreatedAt.Format("2006/01/02 15:04"))
}

// EntryRecorded confirms a recorded expense row.
func EntryRecorded(res *sheet.Result, amount int, details string) string {
	return fmt.Sprintf("経費を登録しました: %s %s (行%d)\n<%s|シートを開く>",
		sheet.FormatAmount(amount), details, res.Row, res.SheetURL)
}

// SheetFull renders the capacity message of a full monthly sheet.
func SheetFull(res *sheet.Result) string {
	return fmt.Sprintf("%s\n<%s|シートを開く>", res.Message, res.SheetURL)
}

// StatusView renders a monthly summary.
func StatusView(st *sheet.Status) string {
	return fmt.Sprintf("*%s の経費*\n登録: %d件 / 残り%d行\n合計: %s\n<%s|シートを開く>",
		st.YearMonth.String(), st.Count, st.Remaining, sheet.FormatAmount(st.Total), st.SheetURL)
}

// ListView renders the entry rows of a month.
func ListView(st *sheet.Status) string {
	if len(st.Entries) == 0 {
		return fmt.Sprintf("%s の登録はまだありません。", st.YearMonth.String())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s の明細*\n", st.YearMonth.String())
	for _, e := range st.Entries {
		amount := "(金額不明)"
		if e.ValidAmount {
			amount = sheet.FormatAmount(e.Amount)
		}
		fmt.Fprintf(&b, "%d. %s %s %s", e.No, e.Date, amount, e.Details)
		if e.Memo != "" {
			fmt.Fprintf(&b, " — %s", e.Memo)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "合計: %s", sheet.FormatAmount(st.Total))
	return b.String()
}

// ErrorMessage turns an internal error into user-facing text. Domain errors
// carry their own message when they have one; everything else collapses to a
// generic line per kind so internals never leak into chat.
func ErrorMessage(err error) string {
	var e *keihi.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch {
	case keihi.IsConfig(err):
		return "設定に問題があります。`/keihi setup` を実行してください。"
	case keihi.IsValidation(err):
		return "入力値が正しくありません。`/keihi help` で形式を確認してください。"
	case keihi.IsNotFound(err):
		return "対象が見つかりませんでした。月の指定を確認してください。"
	default:
		return "処理に失敗しました。しばらくしてからもう一度お試しください。"
	}
}

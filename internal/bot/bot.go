// Package bot dispatches Slack socket-mode events: slash commands, the
// receipt message shortcut and modal submissions. It owns no business logic;
// it parses, calls into the domain services and renders replies via botfmt.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/keihibot/keihi/internal/botfmt"
	"github.com/keihibot/keihi/internal/drive"
	"github.com/keihibot/keihi/internal/export"
	"github.com/keihibot/keihi/internal/health"
	"github.com/keihibot/keihi/internal/keihi"
	"github.com/keihibot/keihi/internal/month"
	"github.com/keihibot/keihi/internal/ocr"
	"github.com/keihibot/keihi/internal/session"
	"github.com/keihibot/keihi/internal/settings"
	"github.com/keihibot/keihi/internal/sheet"
)

// ShortcutCallbackID identifies the message shortcut that opens the receipt
// modal. Must match the shortcut configured in the Slack app manifest.
const ShortcutCallbackID = "register_receipt"

// Messenger is the Slack Web API surface the bot uses.
type Messenger interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	GetFileContext(ctx context.Context, downloadURL string, writer io.Writer) error
}

// SettingsStore persists per-user configuration.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*settings.UserSettings, error)
	Save(ctx context.Context, userID, spreadsheetID, email string) (*settings.UserSettings, error)
}

// SheetService records and aggregates expense entries.
type SheetService interface {
	AddEntry(ctx context.Context, in sheet.EntryInput) (*sheet.Result, error)
	Status(ctx context.Context, userID string, ym month.YearMonth) (*sheet.Status, error)
}

// Uploader stores receipt files.
type Uploader interface {
	UploadFile(ctx context.Context, userID string, ym month.YearMonth, content []byte, fileName, mimeType string) (*drive.FileInfo, error)
}

// ReportExporter builds monthly report PDFs.
type ReportExporter interface {
	Export(ctx context.Context, userID string, ym month.YearMonth) (*export.Report, error)
}

// PendingReceipt is a receipt waiting for its modal submission.
type PendingReceipt struct {
	FileName string
	MimeType string
	Data     []byte
	Channel  string
}

// Bot handles Slack events.
type Bot struct {
	slack    Messenger
	settings SettingsStore
	sheets   SheetService
	drive    Uploader
	exporter ReportExporter
	ocr      *ocr.Client // nil disables receipt scanning
	pending  *session.Cache[string, PendingReceipt]
	metrics  *health.Metrics
	now      func() time.Time
}

// New builds a Bot. ocrClient may be nil; metrics may be nil.
func New(slackAPI Messenger, st SettingsStore, sh SheetService, up Uploader,
	ex ReportExporter, ocrClient *ocr.Client, pending *session.Cache[string, PendingReceipt],
	metrics *health.Metrics) *Bot {
	if metrics == nil {
		metrics = health.NewMetrics()
	}
	return &Bot{
		slack:    slackAPI,
		settings: st,
		sheets:   sh,
		drive:    up,
		exporter: ex,
		ocr:      ocrClient,
		pending:  pending,
		metrics:  metrics,
		now:      time.Now,
	}
}

// HandleCommand processes one slash command and returns the immediate reply.
// Export is the only long command; it is acknowledged right away and finished
// in its own goroutine with a follow-up message.
func (b *Bot) HandleCommand(ctx context.Context, cmd slack.SlashCommand) string {
	sub, args := splitCommand(cmd.Text)
	b.metrics.Commands.WithLabelValues(sub).Inc()

	reply, err := b.dispatch(ctx, cmd, sub, args)
	if err != nil {
		b.metrics.Errors.Inc()
		slog.Error("command failed", "user", cmd.UserID, "command", sub, "error", err)
		return botfmt.ErrorMessage(err)
	}
	return reply
}

func (b *Bot) dispatch(ctx context.Context, cmd slack.SlashCommand, sub string, args []string) (string, error) {
	switch sub {
	case "add":
		return b.cmdAdd(ctx, cmd.UserID, args)
	case "setup":
		return b.cmdSetup(ctx, cmd.UserID, args)
	case "config":
		us, err := b.settings.Get(ctx, cmd.UserID)
		if err != nil {
			return "", err
		}
		return botfmt.ConfigView(us), nil
	case "status":
		st, err := b.monthStatus(ctx, cmd.UserID, args)
		if err != nil {
			return "", err
		}
		return botfmt.StatusView(st), nil
	case "list":
		st, err := b.monthStatus(ctx, cmd.UserID, args)
		if err != nil {
			return "", err
		}
		return botfmt.ListView(st), nil
	case "export":
		ym, err := parseMonthArg(args, b.now())
		if err != nil {
			return "", err
		}
		go b.runExport(cmd.UserID, cmd.ChannelID, ym)
		return botfmt.ExportStarted(ym), nil
	case "help":
		return botfmt.Help, nil
	default:
		return botfmt.UnknownCommand, nil
	}
}

func (b *Bot) cmdAdd(ctx context.Context, userID string, args []string) (string, error) {
	in, err := parseAdd(args, b.now())
	if err != nil {
		return "", err
	}
	res, err := b.sheets.AddEntry(ctx, sheet.EntryInput{
		UserID:  userID,
		Date:    in.Date,
		Amount:  in.Amount,
		Details: in.Details,
		Memo:    in.Memo,
	})
	if err != nil {
		return "", err
	}
	if !res.OK {
		return botfmt.SheetFull(res), nil
	}
	b.metrics.Entries.Inc()
	return botfmt.EntryRecorded(res, in.Amount, in.Details), nil
}

func (b *Bot) cmdSetup(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) != 2 {
		return "", keihi.Ef(keihi.KindValidation, userID, "bot.cmdSetup",
			"使い方: `/keihi setup <スプレッドシートID> <メールアドレス>`")
	}
	us, err := b.settings.Save(ctx, userID, args[0], args[1])
	if err != nil {
		return "", err
	}
	return botfmt.SetupDone(us), nil
}

func (b *Bot) monthStatus(ctx context.Context, userID string, args []string) (*sheet.Status, error) {
	ym, err := parseMonthArg(args, b.now())
	if err != nil {
		return nil, err
	}
	return b.sheets.Status(ctx, userID, ym)
}

// exportTimeout bounds a background report build.
const exportTimeout = 3 * time.Minute

// runExport builds the report after the slash command was acknowledged and
// posts the outcome to the channel, threading the PDF under the announcement.
// Fire and forget: no retry, no persisted job state.
func (b *Bot) runExport(userID, channelID string, ym month.YearMonth) {
	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	rep, err := b.exporter.Export(ctx, userID, ym)
	if err != nil {
		b.metrics.Exports.WithLabelValues("error").Inc()
		slog.Error("export failed", "user", userID, "month", ym.String(), "error", err)
		b.post(ctx, channelID, botfmt.ErrorMessage(err))
		return
	}
	b.metrics.Exports.WithLabelValues("ok").Inc()

	ts := b.post(ctx, channelID, botfmt.ExportDone(ym, rep.Link))
	if ts == "" {
		return
	}
	_, err = b.slack.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Filename:        rep.Name,
		FileSize:        len(rep.Data),
		Reader:          bytes.NewReader(rep.Data),
		Channel:         channelID,
		ThreadTimestamp: ts,
	})
	if err != nil {
		slog.Warn("report upload to slack failed", "user", userID, "error", err)
	}
}

func (b *Bot) post(ctx context.Context, channelID, text string) string {
	_, ts, err := b.slack.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Error("posting to slack failed", "channel", channelID, "error", err)
		return ""
	}
	return ts
}

// HandleShortcut reacts to the receipt message shortcut: it downloads the
// first attached file, stashes it as a pending receipt and opens the modal.
func (b *Bot) HandleShortcut(ctx context.Context, cb slack.InteractionCallback) {
	userID := cb.User.ID
	channelID := cb.Channel.ID

	if len(cb.Message.Files) == 0 {
		b.post(ctx, channelID, "このメッセージにはファイルが添付されていません。")
		return
	}
	file := cb.Message.Files[0]

	var buf bytes.Buffer
	if err := b.slack.GetFileContext(ctx, file.URLPrivateDownload, &buf); err != nil {
		slog.Error("receipt download from slack failed", "user", userID, "file", file.Name, "error", err)
		b.post(ctx, channelID, "添付ファイルを取得できませんでした。")
		return
	}

	key := sessionKey(userID, channelID)
	b.pending.Put(key, PendingReceipt{
		FileName: file.Name,
		MimeType: file.Mimetype,
		Data:     buf.Bytes(),
		Channel:  channelID,
	})

	prefill := botfmt.ReceiptValues{Date: b.now().Format(sheet.DateLayout)}
	if b.ocr != nil && strings.HasPrefix(file.Mimetype, "image/") {
		prefill = b.scanReceipt(ctx, userID, buf.Bytes(), prefill)
	}

	if _, err := b.slack.OpenViewContext(ctx, cb.TriggerID, botfmt.ReceiptModal(key, file.Name, prefill)); err != nil {
		slog.Error("opening receipt modal failed", "user", userID, "error", err)
		b.pending.Delete(key)
	}
}

// scanReceipt pre-fills the modal from OCR guesses. Best effort: any failure
// leaves the defaults in place.
func (b *Bot) scanReceipt(ctx context.Context, userID string, data []byte, prefill botfmt.ReceiptValues) botfmt.ReceiptValues {
	text, err := b.ocr.DetectText(ctx, data)
	if err != nil {
		slog.Warn("receipt scan failed", "user", userID, "error", err)
		return prefill
	}
	g := ocr.ParseReceipt(text, b.now())
	if g.HasAmount {
		prefill.Amount = strconv.Itoa(g.Amount)
	}
	if g.Date != "" {
		prefill.Date = g.Date
	}
	return prefill
}

// ValidateReceipt checks modal inputs and returns per-block errors for the
// view submission ack, keyed by block ID. Empty map means valid.
func ValidateReceipt(vals botfmt.ReceiptValues) map[string]string {
	errs := map[string]string{}
	if _, err := time.Parse(sheet.DateLayout, vals.Date); err != nil {
		errs[botfmt.DateBlockID] = "日付は 2025/02/03 の形式で入力してください。"
	}
	if _, err := sheet.ParseAmount(vals.Amount); err != nil {
		errs[botfmt.AmountBlockID] = "金額を数値で入力してください。"
	}
	if strings.TrimSpace(vals.Details) == "" {
		errs[botfmt.DetailsBlockID] = "内容を入力してください。"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ProcessReceipt finishes a validated modal submission: upload the pending
// file to the month's Drive folder, then record the entry with the file link.
// The pending receipt is consumed even on failure; a resubmission needs a new
// shortcut invocation.
func (b *Bot) ProcessReceipt(ctx context.Context, userID, metadata string, vals botfmt.ReceiptValues) (string, error) {
	const op = "bot.ProcessReceipt"

	pr, ok := b.pending.Take(metadata)
	if !ok {
		return "", keihi.Ef(keihi.KindValidation, userID, op,
			"セッションの有効期限が切れました。もう一度ショートカットからやり直してください。")
	}

	date, err := time.Parse(sheet.DateLayout, vals.Date)
	if err != nil {
		return "", keihi.Ef(keihi.KindValidation, userID, op, "日付の形式が正しくありません: %s", vals.Date)
	}
	amount, err := sheet.ParseAmount(vals.Amount)
	if err != nil {
		return "", keihi.Ef(keihi.KindValidation, userID, op, "金額を認識できませんでした: %s", vals.Amount)
	}

	info, err := b.drive.UploadFile(ctx, userID, month.FromTime(date), pr.Data, pr.FileName, pr.MimeType)
	if err != nil {
		return "", err
	}

	res, err := b.sheets.AddEntry(ctx, sheet.EntryInput{
		UserID:  userID,
		Date:    vals.Date,
		Amount:  amount,
		Details: vals.Details,
		Memo:    vals.Memo,
		FileURL: info.WebViewLink,
	})
	if err != nil {
		return "", err
	}
	if !res.OK {
		return botfmt.SheetFull(res), nil
	}
	b.metrics.Entries.Inc()
	return botfmt.EntryRecorded(res, amount, vals.Details), nil
}

// HandleViewSubmission finishes the receipt modal in the background and posts
// the result to the originating channel.
func (b *Bot) HandleViewSubmission(cb slack.InteractionCallback) {
	userID := cb.User.ID
	metadata := cb.View.PrivateMetadata
	vals := botfmt.ModalValues(cb.View.State)

	channel := ""
	if i := strings.LastIndexByte(metadata, ':'); i >= 0 {
		channel = metadata[i+1:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reply, err := b.ProcessReceipt(ctx, userID, metadata, vals)
	if err != nil {
		b.metrics.Errors.Inc()
		slog.Error("receipt submission failed", "user", userID, "error", err)
		reply = botfmt.ErrorMessage(err)
	}
	if channel != "" {
		b.post(ctx, channel, fmt.Sprintf("<@%s> %s", userID, reply))
	}
}

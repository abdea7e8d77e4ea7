package botfmt

import (
	"github.com/slack-go/slack"
)

// ReceiptCallbackID identifies receipt modal submissions.
const ReceiptCallbackID = "receipt_submit"

// Block and action IDs of the receipt modal inputs.
const (
	DateBlockID    = "receipt_date"
	AmountBlockID  = "receipt_amount"
	DetailsBlockID = "receipt_details"
	MemoBlockID    = "receipt_memo"

	inputActionID = "value"
)

// ReceiptValues are the fields of the receipt modal.
type ReceiptValues struct {
	Date    string
	Amount  string
	Details string
	Memo    string
}

// ReceiptModal builds the receipt registration modal. metadata round-trips
// through Slack's private_metadata and identifies the pending receipt
// session. prefill values (from OCR, when enabled) seed the inputs.
func ReceiptModal(metadata, fileName string, prefill ReceiptValues) slack.ModalViewRequest {
	text := func(s string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.PlainTextType, s, false, false)
	}
	input := func(blockID, label, placeholder, initial string, optional bool) *slack.InputBlock {
		el := slack.NewPlainTextInputBlockElement(text(placeholder), inputActionID)
		el.InitialValue = initial
		blk := slack.NewInputBlock(blockID, text(label), nil, el)
		blk.Optional = optional
		return blk
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "添付ファイル: *"+fileName+"*", false, false),
			nil, nil),
		input(DateBlockID, "日付", "2025/02/03", prefill.Date, false),
		input(AmountBlockID, "金額", "1200", prefill.Amount, false),
		input(DetailsBlockID, "内容", "打ち合わせ飲食代", prefill.Details, false),
		input(MemoBlockID, "メモ", "任意", prefill.Memo, true),
	}

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           text("レシート登録"),
		Submit:          text("登録"),
		Close:           text("キャンセル"),
		CallbackID:      ReceiptCallbackID,
		PrivateMetadata: metadata,
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

// ModalValues extracts the receipt inputs from a view submission.
func ModalValues(state *slack.ViewState) ReceiptValues {
	get := func(blockID string) string {
		if state == nil {
			return ""
		}
		return state.Values[blockID][inputActionID].Value
	}
	return ReceiptValues{
		Date:    get(DateBlockID),
		Amount:  get(AmountBlockID),
		Details: get(DetailsBlockID),
		Memo:    get(MemoBlockID),
	}
}

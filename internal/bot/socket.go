package bot

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/keihibot/keihi/internal/botfmt"
)

// Runner drives the socket-mode connection and fans events out to the Bot,
// one goroutine per event.
type Runner struct {
	client  *socketmode.Client
	bot     *Bot
	onReady func(bool) // connection state changes; may be nil
}

// NewRunner builds a Runner. onReady may be nil.
func NewRunner(client *socketmode.Client, bot *Bot, onReady func(bool)) *Runner {
	if onReady == nil {
		onReady = func(bool) {}
	}
	return &Runner{client: client, bot: bot, onReady: onReady}
}

// Run serves socket-mode events until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	go r.loop(ctx)
	return r.client.RunContext(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-r.client.Events:
			if !ok {
				return
			}
			go r.handle(ctx, evt)
		}
	}
}

func (r *Runner) handle(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		slog.Info("slack socket connected")
		r.onReady(true)
	case socketmode.EventTypeDisconnect, socketmode.EventTypeConnectionError:
		slog.Warn("slack socket disconnected", "type", evt.Type)
		r.onReady(false)
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		reply := r.bot.HandleCommand(ctx, cmd)
		r.client.Ack(*evt.Request, map[string]any{
			"response_type": "ephemeral",
			"text":          reply,
		})
	case socketmode.EventTypeInteractive:
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok || evt.Request == nil {
			return
		}
		r.handleInteraction(ctx, evt, cb)
	}
}

func (r *Runner) handleInteraction(ctx context.Context, evt socketmode.Event, cb slack.InteractionCallback) {
	switch cb.Type {
	case slack.InteractionTypeMessageAction:
		r.client.Ack(*evt.Request)
		if cb.CallbackID == ShortcutCallbackID {
			r.bot.HandleShortcut(ctx, cb)
		}
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID != botfmt.ReceiptCallbackID {
			r.client.Ack(*evt.Request)
			return
		}
		// Validation errors go back into the modal; the real work happens
		// after the ack.
		if errs := ValidateReceipt(botfmt.ModalValues(cb.View.State)); errs != nil {
			r.client.Ack(*evt.Request, map[string]any{
				"response_action": "errors",
				"errors":          errs,
			})
			return
		}
		r.client.Ack(*evt.Request)
		r.bot.HandleViewSubmission(cb)
	default:
		r.client.Ack(*evt.Request)
	}
}

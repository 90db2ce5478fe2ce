package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tgrate/internal/adapters/botapi/govern"
	"tgrate/internal/infra/logger"
	"tgrate/internal/infra/throttle"
)

// pollTimeoutSeconds is the Bot API long-poll window for getUpdates.
const pollTimeoutSeconds = 30

// errBackoff is how long the poller waits after a failed getUpdates call
// before retrying, independent from the per-send retry throttler.
const errBackoff = time.Second

// Poller long-polls Bot API updates and echoes every text message back to
// its own chat through govern.SendWithRetry, driving live per-chat and
// global traffic through the governor and the retry throttler.
type Poller struct {
	client *govern.Client
	retry  *throttle.Throttler
	offset int
}

// NewPoller builds a Poller over client, retrying transient send failures
// through retry.
func NewPoller(client *govern.Client, retry *throttle.Throttler) *Poller {
	return &Poller{client: client, retry: retry}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	logger.Info("update poller starting")
	defer logger.Info("update poller stopped")

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, p.offset, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("getUpdates failed", zap.Error(err))
			if !sleep(ctx, errBackoff) {
				return
			}
			continue
		}

		for _, u := range updates {
			p.offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			p.echo(ctx, u.Message)
		}
	}
}

// echo sends msg's text back to its own chat, throttled by the governor and
// retried on transient failures by p.retry.
func (p *Poller) echo(ctx context.Context, msg *govern.IncomingMessage) {
	reply := govern.SendMessage{Text: msg.Text, ReplyToMessageID: msg.MessageID}
	reply.ChatID = msg.Chat.ID

	if _, err := govern.SendWithRetry[govern.Message](ctx, p.client, p.retry, reply); err != nil {
		logger.Warn("echo send failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err),
		)
	}
}

// sleep waits for d or ctx cancellation, returning false in the latter case.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

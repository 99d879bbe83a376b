// Package notify broadcasts published alerts to configured outbound
// channels. Delivery is best-effort from the dispatcher's point of
// view: a failed broadcast is logged and never blocks alert creation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"zonewatch/internal/config"
	"zonewatch/internal/domain"
	"zonewatch/internal/permanent"
	"zonewatch/internal/templatefmt"
)

// SendResult returns channel-specific metadata after successful delivery.
// Params: sender-specific metadata fields.
// Returns: optional message identifier.
type SendResult struct {
	MessageID int
}

// ChannelSender sends one outbound broadcast to one channel.
// Params: context and broadcast payload.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, broadcast domain.AlertBroadcast) (SendResult, error)
}

// channelRuntime binds one sender to its template and retry policy.
type channelRuntime struct {
	sender   ChannelSender
	body     *template.Template
	bodyErr  error
	retry    config.NotifyRetry
}

// Dispatcher delivers broadcasts with configured retries/backoff.
// Params: sender list and per-channel retry policy.
// Returns: broadcast helper for manager and dispatch layers.
type Dispatcher struct {
	runtimes map[string]channelRuntime
	channels []string
	logger   *slog.Logger
}

// NewDispatcher builds broadcast dispatcher from enabled channels.
// Params: global notify config and optional logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	runtimes := make(map[string]channelRuntime)
	if cfg.Telegram.Enabled {
		runtimes[config.NotifyChannelTelegram] = newChannelRuntime(
			NewTelegramSender(cfg.Telegram), cfg.Telegram.Template, cfg.Telegram.Retry)
	}
	if cfg.Webhook.Enabled {
		runtimes[config.NotifyChannelWebhook] = newChannelRuntime(
			NewWebhookSender(cfg.Webhook), cfg.Webhook.Template, cfg.Webhook.Retry)
	}

	channels := make([]string, 0, len(runtimes))
	for channel := range runtimes {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	return &Dispatcher{runtimes: runtimes, channels: channels, logger: logger}
}

// newChannelRuntime compiles one channel template and pairs it with its sender.
// Params: sender, raw template body, and retry policy.
// Returns: runtime entry; template parse errors surface on first send.
func newChannelRuntime(sender ChannelSender, templateBody string, retry config.NotifyRetry) channelRuntime {
	body, err := templatefmt.ParseBroadcastTemplate("notify."+sender.Channel()+".template", templateBody)
	return channelRuntime{sender: sender, body: body, bodyErr: err, retry: retry}
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// Broadcast sends one alert to every configured channel.
// Params: context and broadcast payload without rendered message.
// Returns: nothing; per-channel failures are logged and swallowed.
func (d *Dispatcher) Broadcast(ctx context.Context, broadcast domain.AlertBroadcast) {
	for _, channel := range d.channels {
		if _, err := d.Send(ctx, channel, broadcast); err != nil {
			d.logger.Error("broadcast delivery failed",
				"channel", channel, "alert_id", broadcast.AlertID, "error", err.Error())
		}
	}
}

// Send sends one broadcast to a single channel with retry policy.
// Params: destination channel and broadcast payload.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel string, broadcast domain.AlertBroadcast) (SendResult, error) {
	runtime, ok := d.runtimes[channel]
	if !ok {
		return SendResult{}, fmt.Errorf("notify channel %q is not configured", channel)
	}
	if runtime.bodyErr != nil {
		return SendResult{}, fmt.Errorf("notify template for channel %q is invalid: %w", channel, runtime.bodyErr)
	}

	rendered := broadcast
	rendered.Channel = channel
	message, err := renderMessage(runtime.body, rendered)
	if err != nil {
		return SendResult{}, err
	}
	rendered.Message = message

	return d.sendWithRetry(ctx, runtime.sender, rendered, runtime.retry)
}

// sendWithRetry sends one broadcast with channel-specific retry policy.
// Params: sender, payload, and retry policy for the sender channel.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, broadcast domain.AlertBroadcast, retry config.NotifyRetry) (SendResult, error) {
	if !retry.Enabled {
		return sender.Send(ctx, broadcast)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer
	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	for {
		attempt++
		result, err := sender.Send(ctx, broadcast)
		if err == nil {
			stopTimer()
			if retry.LogEachAttempt && attempt > 1 {
				d.logger.Info("broadcast recovered after retries",
					"channel", sender.Channel(), "attempt", attempt)
			}
			return result, nil
		}
		if retry.LogEachAttempt {
			d.logger.Warn("broadcast attempt failed",
				"channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}

		if permanent.Is(err) {
			stopTimer()
			return SendResult{}, fmt.Errorf("channel %s rejected broadcast: %w", sender.Channel(), err)
		}
		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			stopTimer()
			return SendResult{}, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			stopTimer()
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			stopTimer()
			return SendResult{}, ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// renderMessage applies the channel template to one broadcast.
// Params: compiled template and outbound broadcast model.
// Returns: rendered message body.
func renderMessage(body *template.Template, broadcast domain.AlertBroadcast) (string, error) {
	var rendered strings.Builder
	if err := body.Execute(&rendered, broadcast); err != nil {
		return "", fmt.Errorf("render broadcast template: %w", err)
	}
	return rendered.String(), nil
}

// TelegramSender sends broadcasts to Telegram Bot API.
// Params: bot token, chat id, and base URL.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates Telegram sender with HTTP client.
// Params: Telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return config.NotifyChannelTelegram
}

// Send posts one broadcast message to Telegram chat.
// Params: context and broadcast payload.
// Returns: transport or HTTP error.
func (s *TelegramSender) Send(ctx context.Context, broadcast domain.AlertBroadcast) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, s.initErr
	}
	if s.client == nil {
		return SendResult{}, errors.New("telegram client is not initialized")
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      broadcast.Message,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned empty message id")
	}
	return SendResult{MessageID: sent.ID}, nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts broadcast payload to configured HTTP endpoint.
// Params: endpoint URL, method, timeout, and headers.
// Returns: generic HTTP sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates generic HTTP sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return config.NotifyChannelWebhook
}

// Send delivers JSON payload to configured HTTP endpoint.
// Params: context and broadcast payload.
// Returns: transport error; 4xx responses come back marked permanent.
func (s *WebhookSender) Send(ctx context.Context, broadcast domain.AlertBroadcast) (SendResult, error) {
	body, err := json.Marshal(broadcast)
	if err != nil {
		return SendResult{}, fmt.Errorf("encode webhook payload: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return SendResult{}, nil
	}

	statusErr := unexpectedHTTPStatusError("webhook", response)
	// Client errors will not heal on retry; the endpoint rejected the payload.
	if response.StatusCode >= 400 && response.StatusCode < 500 {
		return SendResult{}, permanent.Mark(statusErr)
	}
	return SendResult{}, statusErr
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}

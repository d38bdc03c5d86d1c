// Package bot adapts the Telegram Bot API to the pipeline's gateway contract
// and runs the long-poll update loop.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pixiee/drivemp3/internal/pipeline"
)

const welcomeText = "Send me a Google Drive link to a video file and I will convert it to MP3 for you!"

// Handler processes one inbound text message.
type Handler interface {
	HandleRequest(ctx context.Context, chatID int64, text string)
}

// sender is the slice of the Bot API the gateway needs; it keeps message
// construction testable without a live connection.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Config holds Telegram transport settings.
type Config struct {
	Token string
	// MaxConcurrentJobs bounds simultaneously running pipelines. Zero keeps
	// the transport unlimited, which assumes low traffic: every message
	// spawns external ffmpeg/lame processes with no admission control.
	MaxConcurrentJobs int64
	Debug             bool
}

// Bot owns the Telegram connection. It is constructed explicitly and passed
// around as a handle; there is no package-level client state.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	sem    *semaphore.Weighted
	log    *slog.Logger
	wg     sync.WaitGroup
}

// New authenticates against the Bot API.
func New(cfg Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = cfg.Debug
	log.Info("authorized", slog.String("username", api.Self.UserName))

	var sem *semaphore.Weighted
	if cfg.MaxConcurrentJobs > 0 {
		sem = semaphore.NewWeighted(cfg.MaxConcurrentJobs)
	}
	return &Bot{api: api, sender: api, sem: sem, log: log}, nil
}

// Run polls for updates and dispatches each text message to the handler on
// its own goroutine until ctx is cancelled. It waits for in-flight pipelines
// before returning.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.dispatch(ctx, handler, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler Handler, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if msg.IsCommand() && msg.Command() == "start" {
		if err := b.Respond(ctx, msg.Chat.ID, welcomeText); err != nil {
			b.log.Warn("could not send welcome", slog.String("error", err.Error()))
		}
		return
	}

	requestID := uuid.NewString()
	log := b.log.With(slog.String("request_id", requestID), slog.Int64("chat_id", msg.Chat.ID))

	if b.sem != nil {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return
		}
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if b.sem != nil {
			defer b.sem.Release(1)
		}
		log.Info("handling request")
		handler.HandleRequest(ctx, msg.Chat.ID, msg.Text)
	}()
}

// Respond sends a plain text reply.
func (b *Bot) Respond(_ context.Context, chatID int64, text string) error {
	_, err := b.sender.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendAudio uploads the MP3 with its duration, title and performer attributes.
func (b *Bot) SendAudio(_ context.Context, chatID int64, path string, meta pipeline.AudioMetadata) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Duration = meta.Duration
	audio.Title = meta.Title
	audio.Performer = meta.Performer
	_, err := b.sender.Send(audio)
	return err
}

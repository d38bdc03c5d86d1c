package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"

	"github.com/pixiee/drivemp3/internal/pipeline"
)

type captureSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *captureSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func testBot(s sender) *Bot {
	return &Bot{
		sender: s,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRespond(t *testing.T) {
	s := &captureSender{}
	b := testBot(s)

	if err := b.Respond(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("Respond error=%v", err)
	}
	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", s.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "hello" {
		t.Fatalf("sent %+v", msg)
	}
}

func TestSendAudio_SetsAttributes(t *testing.T) {
	s := &captureSender{}
	b := testBot(s)

	meta := pipeline.AudioMetadata{Duration: 10, Title: "My_Clip", Performer: "My_Clip"}
	if err := b.SendAudio(context.Background(), 42, "/tmp/My_Clip.mp3", meta); err != nil {
		t.Fatalf("SendAudio error=%v", err)
	}
	audio, ok := s.sent[0].(tgbotapi.AudioConfig)
	if !ok {
		t.Fatalf("sent %T, want AudioConfig", s.sent[0])
	}
	if audio.ChatID != 42 || audio.Duration != 10 || audio.Title != "My_Clip" || audio.Performer != "My_Clip" {
		t.Fatalf("audio config %+v", audio)
	}
	if fp, ok := audio.File.(tgbotapi.FilePath); !ok || string(fp) != "/tmp/My_Clip.mp3" {
		t.Fatalf("audio file %v", audio.File)
	}
}

type recordingHandler struct {
	mu       sync.Mutex
	requests []string
	done     chan struct{}
}

func (h *recordingHandler) HandleRequest(_ context.Context, _ int64, text string) {
	h.mu.Lock()
	h.requests = append(h.requests, text)
	h.mu.Unlock()
	if h.done != nil {
		h.done <- struct{}{}
	}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: text,
		},
	}
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	u := textUpdate(chatID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	return u
}

func TestDispatch_StartCommand(t *testing.T) {
	s := &captureSender{}
	b := testBot(s)
	h := &recordingHandler{}

	b.dispatch(context.Background(), h, commandUpdate(42, "/start"))
	b.wg.Wait()

	if len(h.requests) != 0 {
		t.Fatalf("handler invoked for /start: %v", h.requests)
	}
	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.Text != welcomeText {
		t.Fatalf("sent %+v, want welcome text", s.sent[0])
	}
}

func TestDispatch_TextGoesToHandler(t *testing.T) {
	s := &captureSender{}
	b := testBot(s)
	h := &recordingHandler{done: make(chan struct{}, 1)}

	b.dispatch(context.Background(), h, textUpdate(42, "https://drive.google.com/file/d/ABC123/view"))

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
	b.wg.Wait()
	if len(h.requests) != 1 {
		t.Fatalf("requests=%v", h.requests)
	}
	if len(s.sent) != 0 {
		t.Fatalf("unexpected direct sends: %v", s.sent)
	}
}

func TestDispatch_IgnoresNonText(t *testing.T) {
	b := testBot(&captureSender{})
	h := &recordingHandler{}

	b.dispatch(context.Background(), h, tgbotapi.Update{})
	b.dispatch(context.Background(), h, textUpdate(42, ""))
	b.wg.Wait()

	if len(h.requests) != 0 {
		t.Fatalf("handler invoked for empty updates: %v", h.requests)
	}
}

func TestDispatch_SemaphoreBoundsConcurrency(t *testing.T) {
	b := testBot(&captureSender{})
	b.sem = semaphore.NewWeighted(1)

	release := make(chan struct{})
	running := make(chan struct{}, 2)
	h := handlerFunc(func(context.Context, int64, string) {
		running <- struct{}{}
		<-release
	})

	b.dispatch(context.Background(), h, textUpdate(1, "first"))
	<-running

	// The second dispatch must block on the semaphore until the first
	// pipeline releases it.
	go b.dispatch(context.Background(), h, textUpdate(2, "second"))
	select {
	case <-running:
		t.Fatal("second pipeline started while first held the permit")
	case <-time.After(100 * time.Millisecond):
	}

	release <- struct{}{}
	<-running
	release <- struct{}{}
	b.wg.Wait()
}

type handlerFunc func(ctx context.Context, chatID int64, text string)

func (f handlerFunc) HandleRequest(ctx context.Context, chatID int64, text string) {
	f(ctx, chatID, text)
}

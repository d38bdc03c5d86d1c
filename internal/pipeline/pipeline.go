// Package pipeline sequences one chat request through fetch, transcode,
// encode, probe and delivery, and owns the transient files created along the
// way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixiee/drivemp3/internal/drive"
	"github.com/pixiee/drivemp3/internal/transcode"
)

const (
	msgInvalidURL  = "Please send a valid Google Drive video URL."
	msgDownloading = "Downloading video from Google Drive..."
	msgConverting  = "Converting to MP3..."
	msgUploading   = "Uploading MP3..."

	defaultBitrateKbps = 32
)

// AudioMetadata is attached to the delivered MP3.
type AudioMetadata struct {
	Duration  int // seconds
	Title     string
	Performer string
}

// Gateway delivers replies and files back to a chat.
type Gateway interface {
	Respond(ctx context.Context, chatID int64, text string) error
	SendAudio(ctx context.Context, chatID int64, path string, meta AudioMetadata) error
}

// Config wires the pipeline's collaborators.
type Config struct {
	Fetcher    drive.Fetcher
	Transcoder transcode.Transcoder
	Gateway    Gateway
	Logger     *slog.Logger
	// BitrateKbps constrains the final encode. Zero means 32.
	BitrateKbps int
}

// Pipeline drives one request at a time; concurrent requests each get their
// own call into HandleRequest. Transient file names derive from the remote
// display name, so concurrent requests whose names sanitize identically share
// paths; the policy there is last writer wins.
type Pipeline struct {
	fetcher     drive.Fetcher
	transcoder  transcode.Transcoder
	gateway     Gateway
	log         *slog.Logger
	bitrateKbps int
}

func New(cfg Config) *Pipeline {
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = defaultBitrateKbps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		fetcher:     cfg.Fetcher,
		transcoder:  cfg.Transcoder,
		gateway:     cfg.Gateway,
		log:         cfg.Logger,
		bitrateKbps: cfg.BitrateKbps,
	}
}

// HandleRequest runs the whole pipeline for one inbound message. Messages
// without a recognizable share link get a single usage reply and touch no
// collaborator. Any stage failure is reported to the chat as one generic
// error message; there are no retries. Transient files are removed on every
// exit path, success or failure - the removal itself is best effort.
func (p *Pipeline) HandleRequest(ctx context.Context, chatID int64, text string) {
	fileID, err := drive.ExtractFileID(text)
	if err != nil {
		p.reply(ctx, chatID, msgInvalidURL)
		return
	}
	log := p.log.With(slog.Int64("chat_id", chatID), slog.String("file_id", fileID))

	var transient []string
	defer func() {
		p.removeTransient(log, transient)
	}()

	if err := p.run(ctx, log, chatID, fileID, &transient); err != nil {
		log.Error("pipeline failed", slog.String("error", err.Error()))
		p.reply(ctx, chatID, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	log.Info("pipeline finished")
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, chatID int64, fileID string, transient *[]string) error {
	p.reply(ctx, chatID, msgDownloading)
	download, err := p.fetcher.Fetch(ctx, fileID)
	if err != nil {
		return err
	}
	*transient = append(*transient, download.Path)
	log.Info("source downloaded", slog.String("path", download.Path))

	p.reply(ctx, chatID, msgConverting)
	intermediate, err := p.transcoder.ExtractAudio(ctx, download.Path)
	if err != nil {
		return err
	}
	*transient = append(*transient, intermediate)

	encoded, err := p.transcoder.Encode(ctx, intermediate, p.bitrateKbps)
	if err != nil {
		return err
	}
	*transient = append(*transient, encoded)

	seconds, err := p.transcoder.ProbeDuration(ctx, encoded)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(download.Path), filepath.Ext(download.Path))
	meta := AudioMetadata{
		Duration:  int(seconds),
		Title:     stem,
		Performer: stem,
	}

	p.reply(ctx, chatID, msgUploading)
	if err := p.gateway.SendAudio(ctx, chatID, encoded, meta); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// reply sends a progress or status message. Delivery failures are logged and
// otherwise ignored so a flaky chat connection cannot strand transient files.
func (p *Pipeline) reply(ctx context.Context, chatID int64, text string) {
	if err := p.gateway.Respond(ctx, chatID, text); err != nil {
		p.log.Warn("could not send reply",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pipeline) removeTransient(log *slog.Logger, paths []string) {
	for _, path := range paths {
		if err := removeIfExists(path); err != nil {
			log.Warn("could not remove transient file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// removeIfExists deletes a file, treating an already-missing file as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

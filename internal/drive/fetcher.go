// Package drive resolves Google Drive share links and downloads the files
// they reference.
package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/pixiee/drivemp3/internal/sanitize"
)

// Download describes a file fetched to local disk.
type Download struct {
	Path        string
	DisplayName string
	MimeType    string
}

// FetchError wraps any metadata, auth or transfer failure for a file ID.
type FetchError struct {
	FileID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("drive fetch failed for %s: %v", e.FileID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher resolves a Drive file ID to a downloaded local file.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (*Download, error)
}

// APIFetcher downloads files through the Drive v3 API using a read-only
// service account.
type APIFetcher struct {
	service   *gdrive.Service
	workDir   string
	sanitizer *sanitize.Sanitizer
	log       *slog.Logger
}

// NewAPIFetcher builds a Drive service from the given service-account
// credentials file. Downloads land in workDir.
func NewAPIFetcher(ctx context.Context, credentialsFile, workDir string, log *slog.Logger) (*APIFetcher, error) {
	service, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdrive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &APIFetcher{
		service:   service,
		workDir:   workDir,
		sanitizer: sanitize.New(sanitize.Arabic),
		log:       log,
	}, nil
}

// Fetch looks up the file's name and MIME type, streams its content to a
// local file named after the sanitized display name, and returns the result.
func (f *APIFetcher) Fetch(ctx context.Context, fileID string) (*Download, error) {
	meta, err := f.service.Files.Get(fileID).
		Fields("name", "mimeType", "size").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: err}
	}

	base := f.sanitizer.Name(meta.Name)
	if base == "" {
		return nil, &FetchError{FileID: fileID, Err: fmt.Errorf("file name %q sanitized to empty", meta.Name)}
	}
	path := filepath.Join(f.workDir, base+ExtensionForMime(meta.MimeType))

	resp, err := f.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).Download()
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: err}
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: err}
	}
	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, &FetchError{FileID: fileID, Err: err}
	}

	f.log.Info("download completed",
		slog.String("file_id", fileID),
		slog.String("path", path),
		slog.Int64("bytes", written),
	)
	return &Download{Path: path, DisplayName: meta.Name, MimeType: meta.MimeType}, nil
}

// Common container types, resolved before consulting the platform MIME table
// so the extension stays stable across hosts.
var knownExtensions = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"video/x-msvideo":  ".avi",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/ogg":        ".ogg",
	"audio/wav":        ".wav",
}

// ExtensionForMime maps a MIME type to a file extension, returning an empty
// string when nothing matches.
func ExtensionForMime(mimeType string) string {
	if ext, ok := knownExtensions[mimeType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

package drive

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoDriveLink indicates the message text carries no recognizable share link.
var ErrNoDriveLink = errors.New("no google drive link")

var shareLinkPattern = regexp.MustCompile(`https?://drive\.google\.com/file/d/([a-zA-Z0-9_-]+)/?`)

// ExtractFileID finds a Google Drive share link anywhere in the input text and
// returns the embedded file ID.
func ExtractFileID(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrNoDriveLink
	}
	m := shareLinkPattern.FindStringSubmatch(s)
	if len(m) != 2 {
		return "", ErrNoDriveLink
	}
	return m[1], nil
}

// Package ingest materialises uploaded audio into scoped temporary files.
package ingest

import (
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"

	"github.com/mrsingh-rishi/articulate/model"
)

// ErrUnsupportedMedia is returned for uploads that are neither WAV nor MP3.
var ErrUnsupportedMedia = errors.New("unsupported media type: only wav and mp3 are accepted")

var mediaExtensions = map[string]string{
	"audio/wav":      ".wav",
	"audio/x-wav":    ".wav",
	"audio/wave":     ".wav",
	"audio/vnd.wave": ".wav",
	"audio/mpeg":     ".mp3",
	"audio/mp3":      ".mp3",
	"audio/mpeg3":    ".mp3",
	"audio/x-mpeg-3": ".mp3",
}

// Format returns the file extension for the upload's audio format. The
// declared media type wins; generic or missing types fall back to the file
// name extension.
func Format(up model.Upload) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(up.MediaType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if ext, ok := mediaExtensions[mediaType]; ok {
		return ext, nil
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		switch ext := strings.ToLower(filepath.Ext(up.Name)); ext {
		case ".wav", ".mp3":
			return ext, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedMedia, "%s (%s)", up.Name, up.MediaType)
}

// Audio is a materialised upload. Release must be called once processing of
// the upload ends.
type Audio struct {
	Path string
	once sync.Once
	err  error
}

// Materialize writes the upload to a uniquely named file under dir. The
// system temp directory is used when dir is empty.
func Materialize(dir string, up model.Upload) (*Audio, error) {
	ext, err := Format(up)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, "articulate-"+uuid.NewString()+ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "create temp audio")
	}
	if _, err := file.Write(up.Data); err != nil {
		file.Close()
		os.Remove(path)
		return nil, errors.Wrap(err, "write temp audio")
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, errors.Wrap(err, "close temp audio")
	}
	return &Audio{Path: path}, nil
}

// Release deletes the temp file. It is safe to call more than once.
func (a *Audio) Release() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			a.err = errors.Wrap(err, "remove temp audio")
		}
	})
	return a.err
}

// Fingerprint returns the blake3-256 hex digest of the audio bytes.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

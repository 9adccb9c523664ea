// Package media writes message attachments into the flat media directory.
package media

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/suPer8Hu/sms-archive/internal/archive"
)

const fallbackContentType = "application/octet-stream"

type Extractor struct {
	dir string
}

// NewExtractor makes sure dir exists.
func NewExtractor(dir string) (*Extractor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Extractor{dir: dir}, nil
}

func (e *Extractor) Dir() string { return e.dir }

// SaveInline decodes a base64 payload and stores it as
// {messageID}_{index}.{subtype}. Nothing is written when decoding fails.
func (e *Extractor) SaveInline(messageID uint64, index int, contentType, data string) (*archive.Media, error) {
	if data == "" {
		return nil, fmt.Errorf("media part %d of message %d: empty payload", index, messageID)
	}
	raw, err := base64.StdEncoding.DecodeString(stripSpace(data))
	if err != nil {
		return nil, fmt.Errorf("decode media part %d of message %d: %w", index, messageID, err)
	}

	parts := strings.Split(contentType, "/")
	filename := fmt.Sprintf("%d_%d.%s", messageID, index, parts[len(parts)-1])
	path := filepath.Join(e.dir, filename)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}

	return &archive.Media{
		MessageID:   messageID,
		ContentType: &contentType,
		Filename:    &filename,
		FilePath:    &path,
	}, nil
}

// CopyFile copies src to {messageID}_{index}{ext}, keeping its modification
// time. The content type comes from the target name, then from the bytes.
func (e *Extractor) CopyFile(messageID uint64, index int, src string) (*archive.Media, error) {
	filename := fmt.Sprintf("%d_%d%s", messageID, index, filepath.Ext(src))
	path := filepath.Join(e.dir, filename)
	if err := copyFile(src, path); err != nil {
		return nil, fmt.Errorf("copy %s: %w", src, err)
	}

	ct := guessContentType(path)
	return &archive.Media{
		MessageID:   messageID,
		ContentType: &ct,
		Filename:    &filename,
		FilePath:    &path,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// GuessContentType is exported for the read side, which serves files whose
// rows have no content type.
func GuessContentType(path string) string {
	return guessContentType(path)
}

func guessContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if m, err := mimetype.DetectFile(path); err == nil && m != nil {
		return m.String()
	}
	return fallbackContentType
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

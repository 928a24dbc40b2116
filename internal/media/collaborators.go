package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"
)

// Chunk is one indexable slice of a document.
type Chunk struct {
	Text    string
	Title   string
	Heading string
	Page    int
}

// Chunker splits a document into indexable chunks.
type Chunker interface {
	Chunk(ctx context.Context, r io.Reader, name string) ([]Chunk, error)
}

// Thumbnailer renders an image as a base64-encoded PNG.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, r io.Reader) (string, error)
}

// Keyframe is one extracted video frame.
type Keyframe struct {
	PositionSec float64
	EncodedPNG  string
}

// KeyframeExtractor samples representative frames from a video file.
type KeyframeExtractor interface {
	Keyframes(ctx context.Context, path string) ([]Keyframe, error)
}

// AudioExtractor writes a video's audio track to a file and returns its
// path.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// Sentence is one transcribed sentence with its position in the source
// audio.
type Sentence struct {
	Text        string
	PositionSec float64
}

// Transcriber converts an audio file to timestamped sentences.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Sentence, error)
}

// ParagraphChunker splits plain text on blank lines. Markdown headings
// become the Heading of subsequent chunks.
type ParagraphChunker struct{}

func (ParagraphChunker) Chunk(_ context.Context, r io.Reader, name string) ([]Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		chunks  []Chunk
		current strings.Builder
		heading string
	)
	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{Text: text, Title: name, Heading: heading})
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "#"):
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(line, "# "))
		case strings.TrimSpace(line) == "":
			flush()
		default:
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	flush()
	return chunks, nil
}

// PNGThumbnailer decodes any registered image format and re-encodes it as
// base64 PNG. No scaling is applied.
type PNGThumbnailer struct{}

func (PNGThumbnailer) Thumbnail(_ context.Context, r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

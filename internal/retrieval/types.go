package retrieval

// Kind discriminates the retrieved-item variants.
type Kind string

const (
	KindDocumentChunk      Kind = "document_chunk"
	KindImage              Kind = "image"
	KindVideoFrame         Kind = "video_frame"
	KindTranscriptSentence Kind = "transcript_sentence"
)

// Metadata keys written at ingestion and read back at retrieval time.
const (
	MetaSourceDoc   = "source_doc"
	MetaSourceVideo = "source_video"
	MetaTitle       = "title"
	MetaHeading     = "heading"
	MetaPage        = "page"
	MetaPosition    = "position"
)

// Item is one retrieved result. The Kind field discriminates which payload
// fields are meaningful: Text for document chunks and transcript sentences,
// EncodedImage for images and video frames.
type Item struct {
	Kind       Kind    `json:"kind"`
	Similarity float64 `json:"similarity"`

	// SourceID names the originating media item (document or video id,
	// or the image's own id).
	SourceID string `json:"source_id"`

	// Text payload (document chunks, transcript sentences).
	Text string `json:"text,omitempty"`

	// EncodedImage is a base64 PNG rendition (images, video frames).
	EncodedImage string `json:"encoded_image,omitempty"`

	// Chunk position metadata (document chunks only).
	Title   string `json:"title,omitempty"`
	Heading string `json:"heading,omitempty"`
	Page    string `json:"page,omitempty"`

	// Position locates a frame or sentence within its video.
	Position string `json:"position,omitempty"`
}

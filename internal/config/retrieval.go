package config

import "github.com/spf13/viper"

// RetrievalConfig holds per-modality search policy.
//
// Similarity thresholds are not comparable across modalities: document and
// transcript searches run against a text embedding space and use strict
// thresholds, while image and frame searches run against a joint image/text
// space whose scores skew lower. The defaults are inherited policy constants,
// kept overridable rather than hard-coded; there is no derivation that makes
// one value "correct".
type RetrievalConfig struct {
	// Document chunk search. MinChunkLen drops degenerate chunks
	// (page numbers, stray headings) before ranking.
	DocumentThreshold float64 `mapstructure:"document_threshold" json:"document_threshold"`
	DocumentLimit     int     `mapstructure:"document_limit" json:"document_limit"`
	MinChunkLen       int     `mapstructure:"min_chunk_len" json:"min_chunk_len"`

	// Image search (joint image/text embedding space).
	ImageThreshold float64 `mapstructure:"image_threshold" json:"image_threshold"`
	ImageLimit     int     `mapstructure:"image_limit" json:"image_limit"`

	// Video keyframe search (same space as images).
	FrameThreshold float64 `mapstructure:"frame_threshold" json:"frame_threshold"`
	FrameLimit     int     `mapstructure:"frame_limit" json:"frame_limit"`

	// Transcript sentence search. Overlapping audio chunks upstream can
	// yield duplicate sentences, so the search over-fetches and
	// deduplicates by exact text before truncating to TranscriptLimit.
	TranscriptThreshold float64 `mapstructure:"transcript_threshold" json:"transcript_threshold"`
	TranscriptLimit     int     `mapstructure:"transcript_limit" json:"transcript_limit"`

	// Chat history similarity search.
	ChatThreshold float64 `mapstructure:"chat_threshold" json:"chat_threshold"`
	ChatLimit     int     `mapstructure:"chat_limit" json:"chat_limit"`

	// Recent-history window for message assembly.
	RecentHistoryLimit int `mapstructure:"recent_history_limit" json:"recent_history_limit"`

	// ChatSnippetMaxLen caps each chat-memory snippet in the assembled
	// context to bound prompt size.
	ChatSnippetMaxLen int `mapstructure:"chat_snippet_max_len" json:"chat_snippet_max_len"`
}

func setRetrievalDefaults() {
	viper.SetDefault("retrieval.document_threshold", 0.5)
	viper.SetDefault("retrieval.document_limit", 20)
	viper.SetDefault("retrieval.min_chunk_len", 30)
	viper.SetDefault("retrieval.image_threshold", 0.25)
	viper.SetDefault("retrieval.image_limit", 5)
	viper.SetDefault("retrieval.frame_threshold", 0.25)
	viper.SetDefault("retrieval.frame_limit", 5)
	viper.SetDefault("retrieval.transcript_threshold", 0.7)
	viper.SetDefault("retrieval.transcript_limit", 20)
	viper.SetDefault("retrieval.chat_threshold", 0.8)
	viper.SetDefault("retrieval.chat_limit", 10)
	viper.SetDefault("retrieval.recent_history_limit", 4)
	viper.SetDefault("retrieval.chat_snippet_max_len", 150)
}

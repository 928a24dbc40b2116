package config

import "fmt"

// Validate checks the configuration for invalid values.
// It is called by Load after all sources are merged (fail-fast).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Model == "" {
		return fmt.Errorf("%w: model must not be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: %v (must be in [0, 1])", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 64000 {
		return fmt.Errorf("%w: %d (must be in [1, 64000])", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.ImageEmbedderModel == "" {
		return fmt.Errorf("%w: image_embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	return c.Retrieval.validate()
}

// validate checks retrieval policy ranges.
func (r *RetrievalConfig) validate() error {
	thresholds := map[string]float64{
		"document_threshold":   r.DocumentThreshold,
		"image_threshold":      r.ImageThreshold,
		"frame_threshold":      r.FrameThreshold,
		"transcript_threshold": r.TranscriptThreshold,
		"chat_threshold":       r.ChatThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v (must be in [0, 1])", ErrInvalidThreshold, name, v)
		}
	}

	limits := map[string]int{
		"document_limit":       r.DocumentLimit,
		"image_limit":          r.ImageLimit,
		"frame_limit":          r.FrameLimit,
		"transcript_limit":     r.TranscriptLimit,
		"chat_limit":           r.ChatLimit,
		"recent_history_limit": r.RecentHistoryLimit,
		"chat_snippet_max_len": r.ChatSnippetMaxLen,
	}
	for name, v := range limits {
		if v < 1 {
			return fmt.Errorf("%w: %s=%d (must be positive)", ErrInvalidLimit, name, v)
		}
	}

	return nil
}

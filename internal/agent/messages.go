package agent

import (
	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/retrieval"
)

const imageMediaType = "image/png"

// assembleFinalMessages builds the final call's message list: recent turns
// in chronological order, then exactly one user message carrying the
// inlined images (image hits, then frame hits) followed by one text block
// with the assembled context. Hits without an encoded payload are skipped.
// recent is newest first, as the history store returns it.
func assembleFinalMessages(recent []conversation.Turn, contextText string, images, frames []retrieval.Item) []llm.Message {
	messages := make([]llm.Message, 0, len(recent)+1)
	for i := len(recent) - 1; i >= 0; i-- {
		turn := recent[i]
		if turn.Role == "" || turn.Content == "" {
			continue
		}
		messages = append(messages, llm.NewTextMessage(llm.Role(turn.Role), turn.Content))
	}

	content := make([]llm.ContentBlock, 0, len(images)+len(frames)+1)
	for _, item := range images {
		if item.EncodedImage != "" {
			content = append(content, llm.ImageBlock(imageMediaType, item.EncodedImage))
		}
	}
	for _, item := range frames {
		if item.EncodedImage != "" {
			content = append(content, llm.ImageBlock(imageMediaType, item.EncodedImage))
		}
	}
	content = append(content, llm.TextBlock(contextText))

	return append(messages, llm.Message{Role: llm.RoleUser, Content: content})
}

package llm

// isModelNotFound reports whether err is a vendor 404, which in practice means
// the configured model name does not exist.
func isModelNotFound(err error) bool {
	return openAINotFound(err) || geminiNotFound(err) || claudeNotFound(err)
}

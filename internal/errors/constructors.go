package errors

// Convenience functions for common error patterns

// Config errors

func ConfigRequired(field string) *BuilderError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *BuilderError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Forge errors

func RepoCreateError(repo string, cause error) *BuilderError {
	return Wrap(cause, CategoryForge, SeverityFatal, "repository creation failed").
		WithContext("repository", repo)
}

func RepoNotFound(repo string) *BuilderError {
	return New(CategoryForge, SeverityError, "repository not found").
		WithContext("repository", repo)
}

func FileUpsertError(path string, cause error) *BuilderError {
	return WrapRetryable(cause, CategoryForge, SeverityWarning, "file upsert failed").
		WithContext("path", path)
}

// Generation errors

func GenerationError(cause error) *BuilderError {
	return Wrap(cause, CategoryGeneration, SeverityWarning, "content generation failed")
}

func EmptyGeneration() *BuilderError {
	return New(CategoryGeneration, SeverityWarning, "generation provider returned no content")
}

// History errors

func HistoryError(operation string, cause error) *BuilderError {
	return Wrap(cause, CategoryHistory, SeverityFatal, "history store operation failed").
		WithContext("operation", operation)
}

// Notification errors

func NotifyError(url string, cause error) *BuilderError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "evaluation notification failed").
		WithContext("url", url)
}

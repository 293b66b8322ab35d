package pipeline

import "fmt"

// LanguageError reports a language whose catalog could not be processed.
// Other languages are not affected.
type LanguageError struct {
	Lang string
	// Path is the file being read or written.
	Path string
	Err  error
}

func (e *LanguageError) Error() string {
	return fmt.Sprintf("language %s: %s: %v", e.Lang, e.Path, e.Err)
}

func (e *LanguageError) Unwrap() error {
	return e.Err
}

package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Each typed failure matches exactly one of these with errors.Is.
var (
	ErrIngestFailed       = errors.New("ingest failed")
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrTranslationFailed  = errors.New("translation failed")
	ErrRetrievalFailed    = errors.New("retrieval failed")
	ErrConfigurationError = errors.New("configuration error")
)

// Failure is the typed error returned at every pipeline boundary.
// Kind is machine readable; Cause is kept for logs.
type Failure struct {
	Kind  error
	Stage StageName
	Pair  *LanguagePair
	Cause error
}

func (f *Failure) Error() string {
	msg := f.Kind.Error()
	if f.Pair != nil {
		msg += " (" + f.Pair.String() + ")"
	}
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

// Is reports whether target is the failure kind.
func (f *Failure) Is(target error) bool { return target == f.Kind }

func (f *Failure) Unwrap() error { return f.Cause }

// UserMessage returns a message that is safe to show to an end user.
func (f *Failure) UserMessage() string {
	switch f.Kind {
	case ErrIngestFailed:
		return "The document could not be read. Upload a non-empty .txt or .pdf file."
	case ErrEmbeddingFailed:
		return "The document could not be indexed right now. Please try again."
	case ErrTranslationFailed:
		return "The text could not be translated between the selected languages."
	case ErrRetrievalFailed:
		return "No answer could be produced from the document."
	case ErrConfigurationError:
		return "The selected language or setting is not supported."
	}
	return "An error occurred while processing your question."
}

// NewFailure builds a failure of the given kind.
func NewFailure(kind error, cause error) *Failure {
	return &Failure{Kind: kind, Cause: cause}
}

// IngestFailed wraps cause as an ingest failure.
func IngestFailed(cause error) *Failure { return NewFailure(ErrIngestFailed, cause) }

// EmbeddingFailed wraps cause as an embedding failure.
func EmbeddingFailed(cause error) *Failure { return NewFailure(ErrEmbeddingFailed, cause) }

// RetrievalFailed wraps cause as a retrieval failure.
func RetrievalFailed(cause error) *Failure { return NewFailure(ErrRetrievalFailed, cause) }

// TranslationFailed wraps cause as a translation failure for pair.
func TranslationFailed(pair LanguagePair, cause error) *Failure {
	return &Failure{Kind: ErrTranslationFailed, Pair: &pair, Cause: cause}
}

// ConfigurationError reports an invalid setting.
func ConfigurationError(format string, args ...any) *Failure {
	return NewFailure(ErrConfigurationError, fmt.Errorf(format, args...))
}

// AsFailure extracts the typed failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind of err, or nil when err is not a Failure.
func KindOf(err error) error {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return nil
}

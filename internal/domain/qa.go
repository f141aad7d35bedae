package domain

import "time"

// PivotLanguage is the language every question is answered in before translating out.
const PivotLanguage = "English"

// PivotCode is the ISO code of PivotLanguage.
const PivotCode = "en"

// LanguagePair identifies one translation direction.
type LanguagePair struct {
	From string
	To   string
}

func (p LanguagePair) String() string { return p.From + "->" + p.To }

// QARequest is the unit of work for one pipeline invocation.
type QARequest struct {
	Path           string
	Question       string
	InputLanguage  string
	OutputLanguage string
}

// StageName names a step of the question answering pipeline.
type StageName string

const (
	StageIngested      StageName = "ingested"
	StageIndexed       StageName = "indexed"
	StageTranslatedIn  StageName = "translated_in"
	StageAnswered      StageName = "answered"
	StageTranslatedOut StageName = "translated_out"
	StageDone          StageName = "done"
)

// Stage records a completed pipeline step.
type Stage struct {
	Name     StageName
	Duration time.Duration
}

// QAResult is the outcome of a successful pipeline run.
type QAResult struct {
	SessionID       string
	Answer          string
	EnglishQuestion string
	EnglishAnswer   string
	Sources         []SearchResult
	Stages          []Stage
}

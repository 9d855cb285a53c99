package model

// ExtractFailure says why a message did not yield a code.
type ExtractFailure string

const (
	NotRelevant ExtractFailure = "not_relevant"
	NoCodeFound ExtractFailure = "no_code_found"
)

// ExtractionResult holds either a code or a failure, never both.
type ExtractionResult struct {
	code    string
	rule    string
	failure ExtractFailure
	detail  string
}

// Found builds a successful result.
func Found(code, rule string) ExtractionResult {
	return ExtractionResult{code: code, rule: rule}
}

// Failed builds a failed result.
func Failed(kind ExtractFailure, detail string) ExtractionResult {
	return ExtractionResult{failure: kind, detail: detail}
}

func (r ExtractionResult) OK() bool {
	return r.failure == ""
}

func (r ExtractionResult) Code() string {
	return r.code
}

// Rule names the extraction rule that produced the code.
func (r ExtractionResult) Rule() string {
	return r.rule
}

func (r ExtractionResult) Failure() ExtractFailure {
	return r.failure
}

func (r ExtractionResult) Detail() string {
	return r.detail
}

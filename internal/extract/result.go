package extract

// Result is the outcome of the extraction fallback chain for one document.
// When Err is set the extraction is terminal and Text/ImageJPEG are not
// trusted.
type Result struct {
	Text      string
	ImageJPEG []byte
	Err       error
}

// Terminal reports whether extraction failed in a way no later stage can
// recover from (encrypted or structurally broken document).
func (r Result) Terminal() bool { return r.Err != nil }

// stageStatus tags the outcome of one stage in the fallback chain. Each
// stage inspects the prior stage's tag to decide whether to run.
type stageStatus int

const (
	stageOK stageStatus = iota
	stageInsufficient
	stageTerminal
)

type stageResult struct {
	status stageStatus
	text   string
	err    error
}

func stageText(text string) stageResult {
	if text == "" {
		return stageResult{status: stageInsufficient}
	}
	return stageResult{status: stageOK, text: text}
}

func stageFail(err error) stageResult {
	return stageResult{status: stageTerminal, err: err}
}

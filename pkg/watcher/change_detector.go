package watcher

// ChangeAnalysis says what has to be redone after a change.
type ChangeAnalysis struct {
	NeedDecompose bool // the SBOM changed, ask the service again
	NeedReload    bool // the decomposition changed, re-read and re-render
	ChangedFiles  []string
}

// AnalyzeChanges maps a change event to the work it requires.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{ChangedFiles: event.Paths}

	switch event.Type {
	case ChangeTypeSBOM:
		analysis.NeedDecompose = true
		analysis.NeedReload = true
	case ChangeTypeDecomposition:
		analysis.NeedReload = true
	}

	return analysis
}

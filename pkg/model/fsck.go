package model

// FsckStatus is the overall verdict of an integrity check
type FsckStatus string

const (
	// FsckOk means the whole graph verified clean
	FsckOk FsckStatus = "ok"
	// FsckWarnings means recoverable oddities were found (e.g. orphans)
	FsckWarnings FsckStatus = "warnings"
	// FsckCorrupt means reachable objects are damaged or missing
	FsckCorrupt FsckStatus = "corrupt"
)

// FsckIssue describes one finding
type FsckIssue struct {
	Severity string `json:"severity" yaml:"severity"` // "warning" | "corrupt"
	Ref      string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Digest   string `json:"digest,omitempty" yaml:"digest,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Reason   string `json:"reason" yaml:"reason"`
	_        struct{}
}

// FsckReport is the outcome of walking the whole object graph
type FsckReport struct {
	Status           FsckStatus  `json:"status" yaml:"status"`
	Issues           []FsckIssue `json:"issues,omitempty" yaml:"issues,omitempty"`
	ObjectsChecked   int         `json:"objectsChecked" yaml:"objectsChecked"`
	ObjectsCorrupted int         `json:"objectsCorrupted" yaml:"objectsCorrupted"`
	RefsChecked      int         `json:"refsChecked" yaml:"refsChecked"`
	RefsDangling     int         `json:"refsDangling" yaml:"refsDangling"`
	_                struct{}
}

// AddIssue records one finding and bumps counters consistently
func (r *FsckReport) AddIssue(issue FsckIssue) {
	r.Issues = append(r.Issues, issue)
	if issue.Severity == "corrupt" {
		r.ObjectsCorrupted++
		r.Status = FsckCorrupt
	} else if r.Status == FsckOk {
		r.Status = FsckWarnings
	}
}

package schemas

// ScanState is a state of the scan controller.
type ScanState string

const (
	ScanIdle     ScanState = "idle"
	ScanScanning ScanState = "scanning"
	ScanPaused   ScanState = "paused"
	ScanStopped  ScanState = "stopped"
	ScanComplete ScanState = "complete"
)

// IsTerminal reports whether s is a re-entrant start point.
func (s ScanState) IsTerminal() bool {
	return s == ScanIdle || s == ScanStopped || s == ScanComplete
}

// ScanSession is one run of discovery plus sequential visitation over a page.
type ScanSession struct {
	ID              string       `json:"id"`
	URL             string       `json:"url"`
	State           ScanState    `json:"state"`
	Regions         []FormRegion `json:"regions"`
	CurrentIndex    int          `json:"currentIndex"`
	ProgressPercent int          `json:"progressPercent"`
}

// Clone returns a deep copy safe to hand to callers.
func (s ScanSession) Clone() ScanSession {
	out := s
	if s.Regions != nil {
		out.Regions = make([]FormRegion, len(s.Regions))
		copy(out.Regions, s.Regions)
	}
	return out
}

// AutofillStatus is the transient progress record for one fill pass over a region.
type AutofillStatus struct {
	RunID             string  `json:"runId"`
	Active            bool    `json:"active"`
	TargetRegionIndex int     `json:"formIndex"`
	FieldsFound       int     `json:"fieldsFound"`
	FieldsFilled      int     `json:"fieldsFilled"`
	Completed         bool    `json:"completed"`
	Error             *string `json:"error"`
}

// Fail marks the status inactive with msg as its error.
func (a *AutofillStatus) Fail(msg string) {
	a.Active = false
	a.Error = &msg
}

package domain

import "time"

// JobState enumerates conversion lifecycle states. A job only moves forward:
// queued -> parsing -> reconstructing -> exporting -> completed, or to error
// from any non-terminal state.
type JobState string

const (
	JobStateQueued         JobState = "queued"
	JobStateParsing        JobState = "parsing"
	JobStateReconstructing JobState = "reconstructing"
	JobStateExporting      JobState = "exporting"
	JobStateCompleted      JobState = "completed"
	JobStateError          JobState = "error"
)

// Terminal reports whether the state accepts no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

// SmoothingLevel controls how aggressively the reconstructed surface is
// smoothed. Higher levels trade detail for a cleaner result.
type SmoothingLevel string

const (
	SmoothingLight  SmoothingLevel = "light"
	SmoothingMedium SmoothingLevel = "medium"
	SmoothingHigh   SmoothingLevel = "high"
	SmoothingUltra  SmoothingLevel = "ultra"
)

// DefaultSmoothing is applied when the caller does not pick a level.
const DefaultSmoothing = SmoothingMedium

// SmoothingLevels lists the accepted levels in increasing smoothness.
var SmoothingLevels = []SmoothingLevel{SmoothingLight, SmoothingMedium, SmoothingHigh, SmoothingUltra}

// Valid reports whether the level is one of the fixed enum values.
func (l SmoothingLevel) Valid() bool {
	switch l {
	case SmoothingLight, SmoothingMedium, SmoothingHigh, SmoothingUltra:
		return true
	}
	return false
}

// OutputFormat enumerates the supported export targets.
type OutputFormat string

const (
	FormatSTL     OutputFormat = "stl"
	FormatOBJ     OutputFormat = "obj"
	FormatGLB     OutputFormat = "glb"
	FormatThreeMF OutputFormat = "3mf"
	FormatDXF     OutputFormat = "dxf"
)

// OutputFormats lists every supported format.
var OutputFormats = []OutputFormat{FormatSTL, FormatOBJ, FormatGLB, FormatThreeMF, FormatDXF}

// Valid reports whether the format is supported.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatSTL, FormatOBJ, FormatGLB, FormatThreeMF, FormatDXF:
		return true
	}
	return false
}

// ConversionJob is the unit of work: one uploaded file converted to one or
// more output formats. The coordinator owns every record; handlers only ever
// see snapshot copies.
type ConversionJob struct {
	ID           string
	SourceFile   string
	InputPath    string
	Smoothing    SmoothingLevel
	Formats      []OutputFormat
	State        JobState
	Progress     int
	Message      string
	Artifacts    map[OutputFormat]string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy safe to hand across the polling boundary.
func (j *ConversionJob) Clone() *ConversionJob {
	c := *j
	c.Formats = append([]OutputFormat(nil), j.Formats...)
	if j.Artifacts != nil {
		c.Artifacts = make(map[OutputFormat]string, len(j.Artifacts))
		for k, v := range j.Artifacts {
			c.Artifacts[k] = v
		}
	}
	return &c
}

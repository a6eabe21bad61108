// Package model defines shared data structures.
package model

import (
	"fmt"
	"slices"
	"time"
)

// FileDescriptor identifies a recording the backend can load.
type FileDescriptor struct {
	Label string `json:"label"`
	Path  string `json:"value"`
}

// WindowConfig describes how the backend lays a window out in lines.
type WindowConfig struct {
	NumberOfLines    int     `json:"number_of_lines" yaml:"number_of_lines"`
	SingleLineHeight float64 `json:"single_line_height" yaml:"single_line_height"`
}

// Metadata describes the currently loaded recording.
type Metadata struct {
	Filename       string       `json:"filename" yaml:"filename"`
	Duration       float64      `json:"duration" yaml:"duration"`
	SamplingRate   int          `json:"sampling_rate" yaml:"sampling_rate"`
	SamplingPeriod float64      `json:"sampling_period" yaml:"sampling_period"`
	Inverted       bool         `json:"inverted" yaml:"inverted"`
	TotalPeaks     int          `json:"total_peaks" yaml:"total_peaks"`
	Position       float64      `json:"position" yaml:"position"`
	WindowLength   float64      `json:"window_length" yaml:"window_length"`
	WindowConfig   WindowConfig `json:"window_config" yaml:"window_config"`
}

// MaxPosition returns the largest window start that keeps a window of the
// given length inside the recording.
func (m Metadata) MaxPosition(windowLength float64) float64 {
	return max(0, m.Duration-windowLength)
}

// PeakSeries holds peak times and their voltages.
type PeakSeries struct {
	Time    []float64 `json:"time"`
	Voltage []float64 `json:"voltage"`
}

// Peaks groups peaks by annotation class.
type Peaks struct {
	Normal           PeakSeries `json:"normal"`
	Ventricular      PeakSeries `json:"ventricular"`
	Supraventricular PeakSeries `json:"supraventricular"`
	Artifacts        PeakSeries `json:"artifacts"`
}

// TraceWindow is the signal and its peaks for [Position, Position+WindowLength).
type TraceWindow struct {
	Time              []float64    `json:"time"`
	Voltage           []float64    `json:"voltage"`
	Peaks             Peaks        `json:"peaks"`
	Position          float64      `json:"position"`
	WindowLength      float64      `json:"window_length"`
	WindowConfig      WindowConfig `json:"window_config"`
	FirstPeakPosition *int         `json:"first_peak_position"`
}

// AllPeakTimes returns every peak time in the window, sorted ascending.
func (t TraceWindow) AllPeakTimes() []float64 {
	out := make([]float64, 0, len(t.Peaks.Normal.Time))
	out = append(out, t.Peaks.Normal.Time...)
	for _, extra := range [][]float64{t.Peaks.Ventricular.Time, t.Peaks.Supraventricular.Time, t.Peaks.Artifacts.Time} {
		for _, v := range extra {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}

// PoincareRange is the fixed axis range of the Poincaré plot.
type PoincareRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PoincareDataset holds one point per consecutive RR-interval pair.
type PoincareDataset struct {
	Xi    []float64     `json:"xi"`
	Xii   []float64     `json:"xii"`
	Range PoincareRange `json:"range"`
}

// Len returns the number of addressable points.
func (p PoincareDataset) Len() int {
	return min(len(p.Xi), len(p.Xii))
}

// Point returns the point with the given ordinal.
func (p PoincareDataset) Point(pointNumber int) (x, y float64, ok bool) {
	if pointNumber < 0 || pointNumber >= p.Len() {
		return 0, 0, false
	}
	return p.Xi[pointNumber], p.Xii[pointNumber], true
}

// Direction is a window navigation direction.
type Direction string

// Navigation directions.
const (
	DirectionPrevious Direction = "previous"
	DirectionNext     Direction = "next"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPrevious, DirectionNext:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q (want previous or next)", s)
	}
}

// Annotation is a peak classification label.
type Annotation int

// Peak classes as understood by the backend.
const (
	AnnotationNormal Annotation = iota
	AnnotationVentricular
	AnnotationSupraventricular
	AnnotationArtifact
)

// Valid reports whether a is one of the known classes.
func (a Annotation) Valid() bool {
	return a >= AnnotationNormal && a <= AnnotationArtifact
}

func (a Annotation) String() string {
	switch a {
	case AnnotationNormal:
		return "normal"
	case AnnotationVentricular:
		return "ventricular"
	case AnnotationSupraventricular:
		return "supraventricular"
	case AnnotationArtifact:
		return "artifact"
	default:
		return fmt.Sprintf("annotation(%d)", int(a))
	}
}

// EditOp names an annotation mutation.
type EditOp string

// Annotation mutations.
const (
	EditClassify EditOp = "classify"
	EditInsert   EditOp = "insert"
	EditRemove   EditOp = "remove"
)

// Edit is a journaled annotation mutation.
type Edit struct {
	ID           int64
	File         string
	Op           EditOp
	TimePosition float64
	Annotation   *Annotation
	Changed      bool
	At           time.Time
}

// OpenedFile is a journaled file load.
type OpenedFile struct {
	Path     string
	Filename string
	OpenedAt time.Time
}

// EditFilter narrows journal queries.
type EditFilter struct {
	File  string
	Since *time.Time
	Last  int
}

package pipeline

import (
	"encoding/json"
	"fmt"

	"DrawingTransformer/internal/state"
)

// State is the controller's position in the describe/generate sequence.
type State int

const (
	Draw State = iota
	Describing
	Transforming
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Draw:
		return "draw"
	case Describing:
		return "describing"
	case Transforming:
		return "transforming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Draw; st <= Failed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state %q", b)
}

// Busy reports whether a run is in flight.
func (s State) Busy() bool {
	return s == Describing || s == Transforming
}

// isAllowedTransition encodes the state table. Reset is handled separately:
// it is allowed from every state.
func isAllowedTransition(from, to State) bool {
	switch from {
	case Draw:
		return to == Describing
	case Describing:
		return to == Transforming || to == Failed
	case Transforming:
		return to == Done || to == Failed
	default:
		return false
	}
}

// Step is the coarse screen the presentation layer shows.
type Step string

const (
	StepDraw      Step = "draw"
	StepDescribe  Step = "describe"
	StepTransform Step = "transform"
)

// DrawingData is the input snapshot plus whatever the pipeline produced so far.
// Description is only set after ImageData, ArtworkURL only after Description.
type DrawingData struct {
	ImageData   state.Snapshot `json:"imageData"`
	Description *string        `json:"description"`
	ArtworkURL  *string        `json:"transformedArtworkUrl"`
}

// MarshalJSON renders an absent snapshot as null.
func (d DrawingData) MarshalJSON() ([]byte, error) {
	type wire struct {
		ImageData   *string `json:"imageData"`
		Description *string `json:"description"`
		ArtworkURL  *string `json:"transformedArtworkUrl"`
	}
	w := wire{Description: d.Description, ArtworkURL: d.ArtworkURL}
	if !d.ImageData.IsZero() {
		uri := d.ImageData.DataURI()
		w.ImageData = &uri
	}
	return json.Marshal(w)
}

// IsEmpty reports whether no field is populated.
func (d DrawingData) IsEmpty() bool {
	return d.ImageData.IsZero() && d.Description == nil && d.ArtworkURL == nil
}

// View is the externally observable session surface.
type View struct {
	Step      Step        `json:"step"`
	IsLoading bool        `json:"isLoading"`
	State     State       `json:"state"`
	Epoch     Epoch       `json:"epoch"`
	Error     string      `json:"error,omitempty"`
	Data      DrawingData `json:"drawingData"`
}

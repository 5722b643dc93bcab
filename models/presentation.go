package models

type PresentationMode string

const (
	ModeEditing    PresentationMode = "editing"
	ModePresenting PresentationMode = "presenting"
)

type VideoView struct {
	Src         string  `json:"src"`
	Muted       bool    `json:"muted"`
	Autoplay    bool    `json:"autoplay"`
	Loop        bool    `json:"loop"`
	Controls    bool    `json:"controls"`
	Preload     string  `json:"preload"`
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"currentTime"`
}

type SectionView struct {
	Index      int        `json:"index"`
	SlideID    string     `json:"slideId"`
	Kind       SlideKind  `json:"kind"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
	ContentURL string     `json:"contentUrl"`
	Video      *VideoView `json:"video,omitempty"`
}

type PresentationView struct {
	Mode                PresentationMode `json:"mode"`
	EditorVisible       bool             `json:"editorVisible"`
	PresentationVisible bool             `json:"presentationVisible"`
	FullscreenRequested bool             `json:"fullscreenRequested"`
	Fullscreen          bool             `json:"fullscreen"`
	ExitButtonVisible   bool             `json:"exitButtonVisible"`
	ExitHintVisible     bool             `json:"exitHintVisible"`
	ActiveIndex         int              `json:"activeIndex"`
	Sections            []SectionView    `json:"sections"`
}

// PresentationEvent is a UI event forwarded by the presentation page.
type PresentationEvent struct {
	Type   string `json:"type" binding:"required"`
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// StartOptions carries what the page reported about itself. An absent
// fullscreenSupported means the request is attempted.
type StartOptions struct {
	FullscreenSupported *bool `json:"fullscreenSupported,omitempty"`
}

func (o StartOptions) Fullscreen() bool {
	return o.FullscreenSupported == nil || *o.FullscreenSupported
}

const (
	EventSlideChanged      = "slidechanged"
	EventKeyDown           = "keydown"
	EventPointerMove       = "pointermove"
	EventFullscreenChanged = "fullscreenchange"
	EventNext              = "next"
	EventPrev              = "prev"
	EventAutoplayRejected  = "autoplayrejected"
)

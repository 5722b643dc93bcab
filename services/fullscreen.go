package services

import "errors"

var ErrFullscreenUnsupported = errors.New("fullscreen is not supported by this client")

// Fullscreen is the single entry point for fullscreen control.
type Fullscreen interface {
	Supported() bool
	Enter() error
	Exit() error
	Active() bool
}

var _ Fullscreen = (*ClientFullscreen)(nil)

// ClientFullscreen tracks what the page was asked to do and what it
// reported back through fullscreenchange events.
type ClientFullscreen struct {
	supported bool
	requested bool
	active    bool
}

func NewClientFullscreen() *ClientFullscreen {
	return &ClientFullscreen{supported: true}
}

func (f *ClientFullscreen) Supported() bool {
	return f.supported
}

func (f *ClientFullscreen) Enter() error {
	if !f.supported {
		return ErrFullscreenUnsupported
	}
	f.requested = true
	return nil
}

func (f *ClientFullscreen) Exit() error {
	f.requested = false
	return nil
}

func (f *ClientFullscreen) Active() bool {
	return f.active
}

func (f *ClientFullscreen) Requested() bool {
	return f.requested
}

func (f *ClientFullscreen) SetSupported(v bool) {
	f.supported = v
}

// Changed records a fullscreenchange event from the page.
func (f *ClientFullscreen) Changed(active bool) {
	f.active = active
	if !active {
		f.requested = false
	}
}

package services

import (
	"errors"
	"fmt"

	"github.com/Yulian302/lfusys-services-studio/apperror"
)

var errSlideshowNotReady = errors.New("slideshow is not initialized")

// Slideshow is the navigation engine behind a presentation. The observer
// fires synchronously on every change of the active section.
type Slideshow interface {
	Initialize(sections int, observer func(index int)) error
	GoTo(index int) error
	Next() error
	Prev() error
	Current() int
	Destroy()
}

type sectionNavigator struct {
	sections int
	current  int
	observer func(int)
	ready    bool
}

func NewSlideshow() Slideshow {
	return &sectionNavigator{}
}

func (n *sectionNavigator) Initialize(sections int, observer func(index int)) error {
	if sections <= 0 {
		return fmt.Errorf("slideshow needs at least one section, got %d", sections)
	}
	n.sections = sections
	n.current = 0
	n.observer = observer
	n.ready = true
	return nil
}

func (n *sectionNavigator) GoTo(index int) error {
	if !n.ready {
		return errSlideshowNotReady
	}
	if index < 0 || index >= n.sections {
		return apperror.NewValidationError(fmt.Sprintf("section %d out of range [0,%d)", index, n.sections))
	}
	if index == n.current {
		return nil
	}
	n.current = index
	if n.observer != nil {
		n.observer(index)
	}
	return nil
}

func (n *sectionNavigator) Next() error {
	if !n.ready {
		return errSlideshowNotReady
	}
	if n.current+1 >= n.sections {
		return nil
	}
	return n.GoTo(n.current + 1)
}

func (n *sectionNavigator) Prev() error {
	if !n.ready {
		return errSlideshowNotReady
	}
	if n.current == 0 {
		return nil
	}
	return n.GoTo(n.current - 1)
}

func (n *sectionNavigator) Current() int {
	return n.current
}

func (n *sectionNavigator) Destroy() {
	n.ready = false
	n.observer = nil
	n.sections = 0
	n.current = 0
}

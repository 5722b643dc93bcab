package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/benbjohnson/clock"
)

const (
	AutoplayDelay   = 500 * time.Millisecond
	AffordanceDelay = 3 * time.Second

	keyEscape = "Escape"
)

// SlideSource is the deck as the presentation sees it.
type SlideSource interface {
	Slides() []models.SlideRecord
}

type SectionURLFunc func(index int) string

type videoState struct {
	playing     bool
	currentTime float64
}

// PresentationRunner moves a deck between editing and presenting. Every
// state change, including timer callbacks, happens under mu.
type PresentationRunner struct {
	deck       SlideSource
	newEngine  func() Slideshow
	fullscreen *ClientFullscreen
	contentURL ContentURLFunc
	sectionURL SectionURLFunc

	clock  clock.Clock
	logger logging.Logger

	mu          sync.Mutex
	mode        models.PresentationMode
	engine      Slideshow
	sections    []models.SectionView
	canvases    map[int]models.Bitmap
	videos      map[int]*videoState
	active      int
	activation  int
	showButton  bool
	showHint    bool
	autoplay    *clock.Timer
	buttonTimer *clock.Timer
	hintTimer   *clock.Timer
}

func NewPresentationRunner(
	deck SlideSource,
	newEngine func() Slideshow,
	contentURL ContentURLFunc,
	sectionURL SectionURLFunc,
	c clock.Clock,
	l logging.Logger,
) *PresentationRunner {
	if newEngine == nil {
		newEngine = NewSlideshow
	}
	return &PresentationRunner{
		deck:       deck,
		newEngine:  newEngine,
		fullscreen: NewClientFullscreen(),
		contentURL: contentURL,
		sectionURL: sectionURL,
		clock:      c,
		logger:     l,
		mode:       models.ModeEditing,
		canvases:   map[int]models.Bitmap{},
		videos:     map[int]*videoState{},
	}
}

// Start enters presenting. An empty deck is refused and the editor stays.
func (p *PresentationRunner) Start(ctx context.Context, opts models.StartOptions) error {
	slides := p.deck.Slides()
	if len(slides) == 0 {
		p.logger.Info("presentation refused, deck is empty")
		return apperror.ErrEmptyDeck
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTimersLocked()
	if p.engine != nil {
		p.engine.Destroy()
		p.engine = nil
	}

	p.sections = make([]models.SectionView, 0, len(slides))
	p.canvases = make(map[int]models.Bitmap)
	p.videos = make(map[int]*videoState)
	for i, s := range slides {
		sec := models.SectionView{
			Index:   i,
			SlideID: s.ID,
			Kind:    s.Kind,
		}
		switch {
		case s.IsVideo():
			sec.ContentURL = s.Video.Blob.URL
			if p.contentURL != nil {
				sec.ContentURL = p.contentURL(s.ID)
			}
			p.videos[i] = &videoState{}
		case s.Page != nil:
			// each presentation draws from its own copy
			bm := s.Page.Bitmap.Clone()
			p.canvases[i] = bm
			sec.Width, sec.Height = bm.Width, bm.Height
			if p.sectionURL != nil {
				sec.ContentURL = p.sectionURL(i)
			}
		}
		p.sections = append(p.sections, sec)
	}

	engine := p.newEngine()
	if err := engine.Initialize(len(p.sections), p.slideChangedLocked); err != nil {
		return fmt.Errorf("initialize slideshow: %w", err)
	}
	p.engine = engine
	p.mode = models.ModePresenting
	p.active = 0

	p.fullscreen.SetSupported(opts.Fullscreen())
	if err := p.fullscreen.Enter(); err != nil {
		p.logger.Warn("fullscreen request failed", "error", err)
	}

	p.showHint = true
	p.hintTimer = p.clock.AfterFunc(AffordanceDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.showHint = false
	})
	p.revealButtonLocked()

	p.logger.Info("presentation started", "sections", len(p.sections))
	p.slideChangedLocked(0)
	return nil
}

// SlideChanged is the page reporting a new active section.
func (p *PresentationRunner) SlideChanged(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != models.ModePresenting {
		return apperror.ErrNotPresenting
	}
	return p.engine.GoTo(index)
}

func (p *PresentationRunner) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != models.ModePresenting {
		return apperror.ErrNotPresenting
	}
	return p.engine.Next()
}

func (p *PresentationRunner) Prev() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != models.ModePresenting {
		return apperror.ErrNotPresenting
	}
	return p.engine.Prev()
}

// slideChangedLocked stops every video, then schedules playback of the
// active one if it has a video.
func (p *PresentationRunner) slideChangedLocked(index int) {
	p.active = index
	p.activation++
	p.pauseAllLocked()

	if _, ok := p.videos[index]; !ok {
		return
	}

	activation := p.activation
	p.autoplay = p.clock.AfterFunc(AutoplayDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.mode != models.ModePresenting || p.activation != activation {
			return
		}
		v := p.videos[index]
		v.currentTime = 0
		v.playing = true
		p.logger.Debug("video playing", "section", index)
	})
}

// AutoplayRejected is logged and otherwise ignored.
func (p *PresentationRunner) AutoplayRejected(index int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.videos[index]; ok {
		v.playing = false
	}
	p.logger.Info("video autoplay failed", "section", index, "reason", reason)
}

func (p *PresentationRunner) PointerMoved() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != models.ModePresenting {
		return
	}
	p.revealButtonLocked()
}

func (p *PresentationRunner) revealButtonLocked() {
	p.showButton = true
	if p.buttonTimer != nil {
		p.buttonTimer.Stop()
	}
	p.buttonTimer = p.clock.AfterFunc(AffordanceDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.showButton = false
	})
}

// KeyPressed exits on Escape while presenting.
func (p *PresentationRunner) KeyPressed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == keyEscape && p.mode == models.ModePresenting {
		p.exitLocked()
	}
}

// FullscreenChanged only updates chrome. Losing fullscreen never ends the
// presentation.
func (p *PresentationRunner) FullscreenChanged(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullscreen.Changed(active)
	p.logger.Debug("fullscreen changed", "active", active, "mode", p.mode)
}

func (p *PresentationRunner) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitLocked()
}

func (p *PresentationRunner) exitLocked() {
	p.pauseAllLocked()
	p.stopTimersLocked()
	p.activation++
	p.mode = models.ModeEditing
	p.showButton = false
	p.showHint = false

	if p.fullscreen.Active() || p.fullscreen.Requested() {
		if err := p.fullscreen.Exit(); err != nil {
			p.logger.Warn("fullscreen exit failed", "error", err)
		}
	}
	p.logger.Info("presentation exited")
}

func (p *PresentationRunner) pauseAllLocked() {
	if p.autoplay != nil {
		p.autoplay.Stop()
		p.autoplay = nil
	}
	for _, v := range p.videos {
		v.playing = false
		v.currentTime = 0
	}
}

func (p *PresentationRunner) stopTimersLocked() {
	for _, t := range []*clock.Timer{p.autoplay, p.buttonTimer, p.hintTimer} {
		if t != nil {
			t.Stop()
		}
	}
	p.autoplay, p.buttonTimer, p.hintTimer = nil, nil, nil
}

// Close stops timers and tears the engine down.
func (p *PresentationRunner) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimersLocked()
	if p.engine != nil {
		p.engine.Destroy()
		p.engine = nil
	}
	p.mode = models.ModeEditing
}

// SectionBitmap returns the presentation's own copy of a page.
func (p *PresentationRunner) SectionBitmap(index int) (models.Bitmap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != models.ModePresenting {
		return models.Bitmap{}, apperror.ErrNotPresenting
	}
	bm, ok := p.canvases[index]
	if !ok {
		return models.Bitmap{}, apperror.ErrSlideNotFound
	}
	return bm, nil
}

func (p *PresentationRunner) Mode() models.PresentationMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *PresentationRunner) View() models.PresentationView {
	p.mu.Lock()
	defer p.mu.Unlock()

	presenting := p.mode == models.ModePresenting
	view := models.PresentationView{
		Mode:                p.mode,
		EditorVisible:       !presenting,
		PresentationVisible: presenting,
		FullscreenRequested: p.fullscreen.Requested(),
		Fullscreen:          p.fullscreen.Active(),
		ExitButtonVisible:   presenting && p.showButton,
		ExitHintVisible:     presenting && p.showHint,
		ActiveIndex:         p.active,
		Sections:            make([]models.SectionView, 0, len(p.sections)),
	}
	if !presenting {
		return view
	}

	for i, sec := range p.sections {
		if v, ok := p.videos[i]; ok {
			sec.Video = &models.VideoView{
				Src:         sec.ContentURL,
				Muted:       true,
				Autoplay:    false,
				Loop:        false,
				Controls:    false,
				Preload:     "auto",
				Playing:     v.playing,
				CurrentTime: v.currentTime,
			}
		}
		view.Sections = append(view.Sections, sec)
	}
	return view
}

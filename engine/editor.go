package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/mrdg/groove/project"
)

// Editor owns the working copy of a project document. Edits are coalesced
// and rebuilt off the audio thread; the engine keeps rendering the previous
// snapshot until the new one is installed.
type Editor struct {
	engine    *Engine
	logger    *slog.Logger
	debounced func(f func())

	mu      sync.Mutex
	doc     *project.Document
	version int
	built   int
	err     error
}

func NewEditor(e *Engine, doc *project.Document, delay time.Duration, logger *slog.Logger) *Editor {
	return &Editor{
		engine:    e,
		logger:    logger,
		debounced: debounce.New(delay),
		doc:       doc,
	}
}

// Edit applies fn to the working document and schedules a rebuild. If fn
// fails the document is left unchanged.
func (ed *Editor) Edit(fn func(doc *project.Document) error) error {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	doc, err := ed.doc.Clone()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	ed.doc = doc
	ed.version++
	ed.debounced(func() { ed.rebuild() })
	return nil
}

// Flush rebuilds immediately if there are edits that haven't been built yet
// and returns the result of the last build.
func (ed *Editor) Flush() error {
	ed.rebuild()
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.err
}

// Document returns a copy of the working document.
func (ed *Editor) Document() (*project.Document, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.doc.Clone()
}

func (ed *Editor) rebuild() {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if ed.version == ed.built {
		return
	}
	ed.built = ed.version
	s, err := Build(ed.doc, ed.engine.Config())
	ed.err = err
	if err != nil {
		ed.logger.Error("rebuild failed", "version", ed.version, "err", err)
		return
	}
	ed.engine.Install(s)
	ed.logger.Info("rebuilt project", "snapshot", s.ID, "version", ed.version)
}

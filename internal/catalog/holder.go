package catalog

import (
	"log/slog"
	"sync/atomic"

	"github.com/roach88/fusion/internal/card"
)

// Holder publishes the current catalog to readers.
//
// Rebuild builds a complete new table off to the side and then swaps the
// reference, so a reader always sees one whole catalog. Holder is safe for
// concurrent use.
type Holder struct {
	current atomic.Pointer[Catalog]
	logger  *slog.Logger
}

// NewHolder creates a holder publishing c. c may be nil; an empty holder
// matches nothing.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c != nil {
		h.current.Store(c)
	}
	return h
}

// WithLogger sets the logger used for rebuild diagnostics.
func (h *Holder) WithLogger(logger *slog.Logger) *Holder {
	h.logger = logger
	return h
}

// Load returns the current catalog, or nil if none was published.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap publishes c and returns the previous catalog.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}

// Rebuild builds a new catalog from recipes and publishes it.
// Rebuilding from the same list is idempotent.
func (h *Holder) Rebuild(recipes []Recipe) *BuildReport {
	c, report := BuildWithOptions(recipes, BuildOptions{Logger: h.logger})
	h.current.Store(c)
	if h.logger != nil {
		h.logger.Info("catalog rebuilt",
			"loaded", report.Loaded,
			"skipped", report.Skipped(),
		)
	}
	return report
}

// TryMatch matches against the current catalog.
func (h *Holder) TryMatch(ids ...card.ID) (card.ID, bool) {
	return h.current.Load().TryMatch(ids...)
}

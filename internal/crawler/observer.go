package crawler

import (
	"sort"
	"sync"

	"github.com/nao1215/linkcrawl/internal/model"
)

// Observer is notified once per fetch attempt, from the branch goroutine
// that made it. Implementations must be safe for concurrent use.
type Observer interface {
	Visited(visit model.PageVisit)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(visit model.PageVisit)

// Visited calls f(visit).
func (f ObserverFunc) Visited(visit model.PageVisit) {
	f(visit)
}

// Collector records every visit it observes.
type Collector struct {
	mu     sync.Mutex
	visits []model.PageVisit
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{visits: make([]model.PageVisit, 0)}
}

// Visited implements Observer.
func (c *Collector) Visited(visit model.PageVisit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visits = append(c.visits, visit)
}

// Visits returns a copy of the recorded visits ordered by depth, then URL.
// Visits of the same URL at the same depth keep their arrival order.
func (c *Collector) Visits() []model.PageVisit {
	c.mu.Lock()
	visits := make([]model.PageVisit, len(c.visits))
	copy(visits, c.visits)
	c.mu.Unlock()

	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].Depth != visits[j].Depth {
			return visits[i].Depth < visits[j].Depth
		}
		return visits[i].URL < visits[j].URL
	})
	return visits
}

// Len returns the number of recorded visits.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.visits)
}

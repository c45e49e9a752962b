package app

import (
	"sync"

	"github.com/marcus/folio/internal/binding"
	"github.com/marcus/folio/internal/plugins/interaction"
)

const (
	highlightMode = "highlight"
	panMode       = "pan"

	hoverToken = "hover"
	panToken   = "pan-drag"
)

// span is a normalized rectangle of cells inside a page.
type span struct {
	X0, Y0, X1, Y1 int
}

func spanOf(a, b interaction.Point) span {
	s := span{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}
	if s.X0 > s.X1 {
		s.X0, s.X1 = s.X1, s.X0
	}
	if s.Y0 > s.Y1 {
		s.Y0, s.Y1 = s.Y1, s.Y0
	}
	return s
}

func (s span) contains(x, y int) bool {
	return x >= s.X0 && x <= s.X1 && y >= s.Y0 && y <= s.Y1
}

type drag struct {
	page       int
	start, cur interaction.Point
}

// canvas is the viewer state pointer handlers write to. Handlers run inside
// Update, but the mutex keeps View consistent with them.
type canvas struct {
	mu         sync.Mutex
	highlights map[int][]span
	drag       *drag
	hoverPage  int
	hoverPoint interaction.Point
	scroll     int
	panAnchor  *int
	screenY    int // row of the event being dispatched
	lastEvent  string
}

func newCanvas() *canvas {
	return &canvas{highlights: make(map[int][]span), hoverPage: interaction.NoPage}
}

// canvasView is a consistent copy of canvas for rendering.
type canvasView struct {
	highlights map[int][]span
	drag       *drag
	hoverPage  int
	hoverPoint interaction.Point
	scroll     int
	lastEvent  string
}

func (c *canvas) snapshot() canvasView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := canvasView{
		hoverPage:  c.hoverPage,
		hoverPoint: c.hoverPoint,
		scroll:     c.scroll,
		lastEvent:  c.lastEvent,
		highlights: make(map[int][]span, len(c.highlights)),
	}
	for k, v := range c.highlights {
		out.highlights[k] = append([]span(nil), v...)
	}
	if c.drag != nil {
		d := *c.drag
		out.drag = &d
	}
	return out
}

// pageHandlers are the highlight-mode handlers for one page.
func (c *canvas) pageHandlers(page int) interaction.PointerEventHandlers {
	return interaction.PointerEventHandlers{
		OnPointerDown: func(ev interaction.PointerEvent) {
			c.mu.Lock()
			c.drag = &drag{page: page, start: ev.Point, cur: ev.Point}
			c.mu.Unlock()
		},
		OnPointerMove: func(ev interaction.PointerEvent) {
			c.mu.Lock()
			if c.drag != nil && c.drag.page == page {
				c.drag.cur = ev.Point
			}
			c.mu.Unlock()
		},
		OnPointerUp: func(ev interaction.PointerEvent) {
			c.mu.Lock()
			if c.drag != nil && c.drag.page == page {
				c.highlights[page] = append(c.highlights[page], spanOf(c.drag.start, ev.Point))
			}
			c.drag = nil
			c.mu.Unlock()
		},
		OnPointerLeave: func(interaction.PointerEvent) {
			c.mu.Lock()
			if c.drag != nil && c.drag.page == page {
				c.drag = nil
			}
			c.mu.Unlock()
		},
		OnDoubleClick: func(ev interaction.PointerEvent) {
			c.mu.Lock()
			kept := c.highlights[page][:0]
			for _, s := range c.highlights[page] {
				if !s.contains(ev.Point.X, ev.Point.Y) {
					kept = append(kept, s)
				}
			}
			c.highlights[page] = kept
			c.mu.Unlock()
		},
	}
}

// hoverHandlers are always active across the viewer.
func (c *canvas) hoverHandlers(cursor *binding.Cursor, maxScroll func() int) interaction.PointerEventHandlers {
	return interaction.PointerEventHandlers{
		OnPointerMove: func(ev interaction.PointerEvent) {
			c.mu.Lock()
			c.hoverPage, c.hoverPoint = ev.PageIndex, ev.Point
			c.mu.Unlock()
			if ev.OnPage() {
				cursor.SetCursor(hoverToken, "pointer", 0)
			} else {
				cursor.RemoveCursor(hoverToken)
			}
		},
		OnPointerLeave: func(interaction.PointerEvent) {
			c.mu.Lock()
			c.hoverPage = interaction.NoPage
			c.mu.Unlock()
			cursor.RemoveCursor(hoverToken)
		},
		OnWheel: func(ev interaction.PointerEvent) {
			delta := 1
			if ev.Button == "wheelUp" {
				delta = -1
			}
			c.mu.Lock()
			c.scroll = clamp(c.scroll+delta, 0, maxScroll())
			c.mu.Unlock()
		},
	}
}

// panHandlers drag the view vertically while pan mode is active.
func (c *canvas) panHandlers(cursor *binding.Cursor, maxScroll func() int) interaction.PointerEventHandlers {
	return interaction.PointerEventHandlers{
		OnPointerDown: func(interaction.PointerEvent) {
			c.mu.Lock()
			y := c.screenY
			c.panAnchor = &y
			c.mu.Unlock()
			cursor.SetCursor(panToken, "grabbing", 10)
		},
		OnPointerMove: func(interaction.PointerEvent) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.panAnchor == nil {
				return
			}
			rows := (*c.panAnchor - c.screenY) / (pageHeight / 2)
			if rows != 0 {
				c.scroll = clamp(c.scroll+rows, 0, maxScroll())
				y := c.screenY
				c.panAnchor = &y
			}
		},
		OnPointerUp: func(interaction.PointerEvent) {
			c.mu.Lock()
			c.panAnchor = nil
			c.mu.Unlock()
			cursor.RemoveCursor(panToken)
		},
	}
}

func (c *canvas) setScroll(v int) {
	c.mu.Lock()
	c.scroll = v
	c.mu.Unlock()
}

func (c *canvas) noteEvent(s string, screenY int) {
	c.mu.Lock()
	c.lastEvent = s
	c.screenY = screenY
	c.mu.Unlock()
}

package app

import "github.com/marcus/folio/internal/plugins/interaction"

const (
	pageWidth  = 26
	pageHeight = 14
	pageGap    = 2
	headerRows = 1
	footerRows = 2
)

// Rect is a screen rectangle in cells.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// layout places page boxes in rows that wrap at the terminal width.
type layout struct {
	width, height int
	pages         int
	cols          int
	scroll        int // first visible row
}

func newLayout(width, height, pages, scroll int) layout {
	cols := (width + pageGap) / (pageWidth + pageGap)
	if cols < 1 {
		cols = 1
	}
	l := layout{width: width, height: height, pages: pages, cols: cols}
	l.scroll = clamp(scroll, 0, l.maxScroll())
	return l
}

func (l layout) rows() int {
	if l.pages == 0 {
		return 0
	}
	return (l.pages + l.cols - 1) / l.cols
}

func (l layout) visibleRows() int {
	avail := l.height - headerRows - footerRows
	n := (avail + 1) / (pageHeight + 1)
	if n < 1 {
		n = 1
	}
	return n
}

func (l layout) maxScroll() int {
	m := l.rows() - l.visibleRows()
	if m < 0 {
		return 0
	}
	return m
}

// pageRect returns the screen rectangle of page i and whether it is visible.
func (l layout) pageRect(i int) (Rect, bool) {
	if i < 0 || i >= l.pages {
		return Rect{}, false
	}
	row, col := i/l.cols-l.scroll, i%l.cols
	if row < 0 || row >= l.visibleRows() {
		return Rect{}, false
	}
	return Rect{
		X: col * (pageWidth + pageGap),
		Y: headerRows + row*(pageHeight+1),
		W: pageWidth,
		H: pageHeight,
	}, true
}

// hit maps a screen position to a page and a point inside its border.
// Positions outside every page return interaction.NoPage.
func (l layout) hit(x, y int) (int, interaction.Point) {
	first := l.scroll * l.cols
	last := first + l.visibleRows()*l.cols
	for i := first; i < last && i < l.pages; i++ {
		r, ok := l.pageRect(i)
		if !ok || !r.Contains(x, y) {
			continue
		}
		return i, interaction.Point{X: x - r.X - 1, Y: y - r.Y - 1}
	}
	return interaction.NoPage, interaction.Point{X: x, Y: y}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

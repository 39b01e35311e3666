// Package sketch implements the drawing surface of the sketchbook: a raster
// canvas with freehand strokes, a bounded undo history, content-preserving
// resize, and PNG export.
package sketch

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/fogleman/gg"
)

const (
	// HistoryCapacity bounds the undo history: ten prior states plus the
	// current one.
	HistoryCapacity = 11

	defaultStrokeWidth = 4.0
)

var ErrInvalidSize = errors.New("sketch: surface dimensions must be positive")

// Point is a surface-local coordinate.
type Point struct {
	X float64
	Y float64
}

// Surface is a freehand drawing surface. It is not safe for concurrent use;
// all operations are driven from a single event loop.
type Surface struct {
	dc          *gg.Context
	width       int
	height      int
	strokeWidth float64
	history     *history
	drawing     bool
	last        Point
}

// NewSurface allocates a white surface sized to the viewport, configures
// stroke rendering (round caps, fixed width, black ink), and captures the
// initial blank state. An unusable size is a fatal initialization error.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	s := &Surface{
		width:       width,
		height:      height,
		strokeWidth: defaultStrokeWidth,
		history:     newHistory(HistoryCapacity),
	}
	s.dc = s.newContext(width, height)
	s.history.push(s.snapshot())
	return s, nil
}

// newContext allocates a backing context with the background filled and
// stroke parameters applied.
func (s *Surface) newContext(width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	s.applyStrokeStyle(dc)
	return dc
}

func (s *Surface) applyStrokeStyle(dc *gg.Context) {
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineWidth(s.strokeWidth)
	dc.SetRGB(0, 0, 0)
}

// Size returns the current surface dimensions.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Drawing reports whether a stroke is in progress.
func (s *Surface) Drawing() bool {
	return s.drawing
}

// HistoryLen returns the number of snapshots currently held.
func (s *Surface) HistoryLen() int {
	return s.history.len()
}

// BeginStroke starts a new path at a surface-local coordinate.
func (s *Surface) BeginStroke(p Point) {
	s.drawing = true
	s.last = p
}

// ExtendStroke draws a segment from the last point to p and renders it
// immediately. No-op while no stroke is active.
func (s *Surface) ExtendStroke(p Point) {
	if !s.drawing {
		return
	}
	s.applyStrokeStyle(s.dc)
	s.dc.DrawLine(s.last.X, s.last.Y, p.X, p.Y)
	s.dc.Stroke()
	s.last = p
}

// EndStroke closes the active path and pushes a snapshot, evicting the
// oldest one once the history is full. No-op while no stroke is active.
func (s *Surface) EndStroke() {
	if !s.drawing {
		return
	}
	s.drawing = false
	s.history.push(s.snapshot())
}

// Clear fills the surface with the background color and pushes a snapshot:
// clearing is itself an undoable action.
func (s *Surface) Clear() {
	s.dc.SetRGB(1, 1, 1)
	s.dc.Clear()
	s.applyStrokeStyle(s.dc)
	s.history.push(s.snapshot())
}

// Undo discards the current state and repaints the surface from the prior
// snapshot. The blank baseline is never removed; undo against it is a no-op.
// There is no redo.
func (s *Surface) Undo() {
	prev, ok := s.history.pop()
	if !ok {
		return
	}
	s.repaint(prev)
}

// Export serializes the surface as it is currently rendered into PNG bytes.
func (s *Surface) Export() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.dc.Image()); err != nil {
		return nil, fmt.Errorf("encode surface: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportDataURL serializes the surface as a self-describing data URL,
// embeddable directly in a request body or displayed inline.
func (s *Surface) ExportDataURL() (string, error) {
	data, err := s.Export()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Resize reallocates the surface at the new dimensions, preserving drawn
// content anchored at the origin: no scaling, content beyond the new bounds
// is clipped, newly exposed area is background-filled.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	old := s.snapshot()
	s.width = width
	s.height = height
	s.dc = s.newContext(width, height)
	s.dc.DrawImage(old, 0, 0)
	return nil
}

// snapshot captures the current raster into an immutable copy.
func (s *Surface) snapshot() *image.RGBA {
	src := s.dc.Image()
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// repaint replaces the surface content with a snapshot, background-filling
// any area the snapshot does not cover.
func (s *Surface) repaint(img *image.RGBA) {
	s.dc.SetRGB(1, 1, 1)
	s.dc.Clear()
	s.dc.DrawImage(img, 0, 0)
	s.applyStrokeStyle(s.dc)
}

// At reports the color of the pixel at (x, y) on the live surface.
func (s *Surface) At(x, y int) (r, g, b, a uint32) {
	return s.dc.Image().At(x, y).RGBA()
}

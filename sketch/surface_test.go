package sketch

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
)

func drawStroke(s *Surface, y float64) {
	s.BeginStroke(Point{X: 10, Y: y})
	s.ExtendStroke(Point{X: 90, Y: y})
	s.EndStroke()
}

func isInk(r, g, b, a uint32) bool {
	// Stroke color is solid black; allow for anti-aliased edges.
	return r < 0x4000 && g < 0x4000 && b < 0x4000 && a == 0xffff
}

func isBackground(r, g, b, a uint32) bool {
	return r > 0xf000 && g > 0xf000 && b > 0xf000 && a == 0xffff
}

func TestNewSurface(t *testing.T) {
	s, err := NewSurface(100, 80)
	if err != nil {
		t.Fatalf("NewSurface failed: %v", err)
	}

	if w, h := s.Size(); w != 100 || h != 80 {
		t.Errorf("Expected size 100x80, got %dx%d", w, h)
	}

	if s.HistoryLen() != 1 {
		t.Errorf("Expected 1 initial snapshot, got %d", s.HistoryLen())
	}

	if !isBackground(s.At(50, 40)) {
		t.Error("Fresh surface should be background-colored")
	}
}

func TestNewSurfaceInvalidSize(t *testing.T) {
	if _, err := NewSurface(0, 80); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := NewSurface(100, -1); err == nil {
		t.Error("Expected error for negative height")
	}
}

func TestStrokeRendersImmediately(t *testing.T) {
	s, _ := NewSurface(100, 100)

	s.BeginStroke(Point{X: 10, Y: 50})
	s.ExtendStroke(Point{X: 90, Y: 50})

	// Ink must be visible before EndStroke.
	if !isInk(s.At(50, 50)) {
		t.Error("Segment should render in real time")
	}

	if s.HistoryLen() != 1 {
		t.Errorf("No snapshot until the stroke completes, got %d", s.HistoryLen())
	}

	s.EndStroke()
	if s.HistoryLen() != 2 {
		t.Errorf("Expected snapshot after EndStroke, got %d", s.HistoryLen())
	}
}

func TestExtendStrokeWithoutBegin(t *testing.T) {
	s, _ := NewSurface(100, 100)

	s.ExtendStroke(Point{X: 50, Y: 50})
	s.EndStroke()

	if s.HistoryLen() != 1 {
		t.Errorf("Expected no snapshots from inactive stroke, got %d", s.HistoryLen())
	}
	if !isBackground(s.At(50, 50)) {
		t.Error("Inactive ExtendStroke should not draw")
	}
}

func TestHistoryLengthLaw(t *testing.T) {
	s, _ := NewSurface(100, 200)

	for n := 1; n <= 15; n++ {
		drawStroke(s, float64(n*10))

		want := n + 1
		if want > HistoryCapacity {
			want = HistoryCapacity
		}
		if s.HistoryLen() != want {
			t.Errorf("After %d strokes expected history %d, got %d", n, want, s.HistoryLen())
		}
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	s, _ := NewSurface(100, 200)

	// Fill the buffer: blank baseline + 10 strokes.
	for n := 1; n <= 10; n++ {
		drawStroke(s, float64(n*15))
	}
	if s.HistoryLen() != HistoryCapacity {
		t.Fatalf("Expected full history, got %d", s.HistoryLen())
	}

	// The 12th snapshot evicts the blank baseline.
	drawStroke(s, 180)
	if s.HistoryLen() != HistoryCapacity {
		t.Errorf("Expected history to stay at %d, got %d", HistoryCapacity, s.HistoryLen())
	}

	// Walking all the way back now lands on the first stroke, not blank.
	for i := 0; i < 20; i++ {
		s.Undo()
	}
	if s.HistoryLen() != 1 {
		t.Fatalf("Expected history to bottom out at 1, got %d", s.HistoryLen())
	}
	if !isInk(s.At(50, 15)) {
		t.Error("Oldest surviving snapshot should contain the first stroke")
	}
}

func TestUndoOnBaselineIsNoop(t *testing.T) {
	s, _ := NewSurface(100, 100)

	before, _ := s.Export()
	s.Undo()
	after, _ := s.Export()

	if s.HistoryLen() != 1 {
		t.Errorf("Undo must keep the last snapshot, got history %d", s.HistoryLen())
	}
	if !bytes.Equal(before, after) {
		t.Error("Undo on the baseline must leave the surface unchanged")
	}
}

func TestUndoRestoresPriorState(t *testing.T) {
	s, _ := NewSurface(100, 100)

	drawStroke(s, 30)
	drawStroke(s, 60)

	if s.HistoryLen() != 3 {
		t.Fatalf("Expected history 3, got %d", s.HistoryLen())
	}

	s.Undo()

	if s.HistoryLen() != 2 {
		t.Errorf("Expected history 2 after undo, got %d", s.HistoryLen())
	}
	if !isInk(s.At(50, 30)) {
		t.Error("First stroke should survive the undo")
	}
	if !isBackground(s.At(50, 60)) {
		t.Error("Second stroke should be gone after undo")
	}

	s.Undo()
	if !isBackground(s.At(50, 30)) {
		t.Error("Surface should be blank after undoing every stroke")
	}
}

func TestClearIsUndoable(t *testing.T) {
	s, _ := NewSurface(100, 100)

	drawStroke(s, 50)
	s.Clear()

	if !isBackground(s.At(50, 50)) {
		t.Error("Clear should wipe drawn content")
	}
	if s.HistoryLen() != 3 {
		t.Errorf("Clear should push a snapshot, got history %d", s.HistoryLen())
	}

	s.Undo()
	if !isInk(s.At(50, 50)) {
		t.Error("Undo after Clear should restore the stroke")
	}
}

func TestExportAfterClear(t *testing.T) {
	s, _ := NewSurface(60, 40)

	drawStroke(s, 20)
	s.Clear()

	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Export is not valid PNG: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 60 || b.Dy() != 40 {
		t.Fatalf("Expected 60x40 export, got %dx%d", b.Dx(), b.Dy())
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < 0xf000 || g < 0xf000 || bl < 0xf000 {
				t.Fatalf("Pixel (%d,%d) not background after Clear", x, y)
			}
		}
	}
}

func TestExportDataURL(t *testing.T) {
	s, _ := NewSurface(30, 30)

	url, err := s.ExportDataURL()
	if err != nil {
		t.Fatalf("ExportDataURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Expected self-describing data URL, got %q", url[:min(len(url), 40)])
	}
}

func TestResizePreservesContent(t *testing.T) {
	s, _ := NewSurface(100, 100)
	drawStroke(s, 50)

	if err := s.Resize(160, 140); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	if w, h := s.Size(); w != 160 || h != 140 {
		t.Errorf("Expected 160x140, got %dx%d", w, h)
	}

	// Content stays anchored top-left, unscaled.
	if !isInk(s.At(50, 50)) {
		t.Error("Stroke should survive the resize at its original coordinates")
	}
	// Newly exposed area is background-filled.
	if !isBackground(s.At(130, 120)) {
		t.Error("New area should be background-colored")
	}
}

func TestResizeClipsContent(t *testing.T) {
	s, _ := NewSurface(100, 100)
	drawStroke(s, 80)

	if err := s.Resize(100, 50); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	// The stroke at y=80 fell outside the new bounds; surface is blank.
	if !isBackground(s.At(50, 25)) {
		t.Error("Visible area should be background after clipping resize")
	}

	if err := s.Resize(0, 50); err == nil {
		t.Error("Expected error for degenerate resize")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package screenshot

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/kbinani/screenshot"
)

var ErrNoDisplay = errors.New("no active displays found")

// Region represents a screen region to capture, in virtual-screen pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

type Point struct {
	X int
	Y int
}

// RegionFromCorners normalizes two drag corners into a Region. The result is
// the same whichever corner the drag started from.
func RegionFromCorners(a, b Point) Region {
	return Region{
		X:      min(a.X, b.X),
		Y:      min(a.Y, b.Y),
		Width:  abs(b.X - a.X),
		Height: abs(b.Y - a.Y),
	}
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// Clip returns the part of r inside bounds.
func (r Region) Clip(bounds image.Rectangle) Region {
	c := r.Rect().Intersect(bounds)
	return Region{X: c.Min.X, Y: c.Min.Y, Width: c.Dx(), Height: c.Dy()}
}

// CaptureRegion captures the part of region that lies on an active display.
func CaptureRegion(region Region) (*image.RGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	bounds, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	visible := region.Clip(bounds)
	if visible.Empty() {
		return nil, fmt.Errorf("region %s is outside the screen %v", region, bounds)
	}

	img, err := screenshot.CaptureRect(visible.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// CaptureToFile captures region and writes it as an image to path, replacing
// any previous capture. The encoding follows the path's extension.
func CaptureToFile(region Region, path string) error {
	img, err := CaptureRegion(region)
	if err != nil {
		return err
	}
	return Save(img, path)
}

// Save writes img to path, creating parent directories as needed.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create capture directory: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save capture to %s: %w", path, err)
	}
	return nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	return screenshot.GetDisplayBounds(0), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package capture

import (
	"github.com/insolesplug-ops/selimcam/internal/errors"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
)

// FrameTransform applies the active preview filter to a slot in place,
// between device read and publish. Implementations must not retain the
// slot or its bytes.
type FrameTransform interface {
	Transform(slot *framebuf.WriteSlot, filter events.FilterID, strength float64) error
}

// IdentityTransform leaves every frame untouched.
type IdentityTransform struct{}

// Transform implements FrameTransform.
func (IdentityTransform) Transform(*framebuf.WriteSlot, events.FilterID, float64) error {
	return nil
}

// ColorTransform implements the preview filter set with per-pixel color
// math. Strength blends between the untouched pixel (0) and the full
// filter (1).
type ColorTransform struct {
	geo framebuf.Geometry
}

// NewColorTransform builds a transform for the pool geometry.
func NewColorTransform(geo framebuf.Geometry) *ColorTransform {
	return &ColorTransform{geo: geo}
}

// Transform implements FrameTransform.
func (t *ColorTransform) Transform(slot *framebuf.WriteSlot, filter events.FilterID, strength float64) error {
	if filter == events.FilterNone || strength <= 0 {
		return nil
	}
	if strength > 1 {
		strength = 1
	}

	buf := slot.Bytes()
	bpp := t.geo.BytesPerPixel
	if bpp < 3 {
		return errors.Newf("capture: filter %s needs an rgb frame", filter).
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}

	for px := 0; px+bpp <= len(buf); px += bpp {
		r := float64(buf[px])
		g := float64(buf[px+1])
		b := float64(buf[px+2])

		var nr, ng, nb float64
		switch filter {
		case events.FilterBW:
			// Rec.601 luma.
			y := 0.299*r + 0.587*g + 0.114*b
			nr, ng, nb = y, y, y
		case events.FilterVintage:
			nr = 0.393*r + 0.769*g + 0.189*b
			ng = 0.349*r + 0.686*g + 0.168*b
			nb = 0.272*r + 0.534*g + 0.131*b
		case events.FilterVivid:
			y := 0.299*r + 0.587*g + 0.114*b
			nr = y + 1.4*(r-y)
			ng = y + 1.4*(g-y)
			nb = y + 1.4*(b-y)
		case events.FilterPortrait:
			// Soft contrast lift around mid-gray.
			nr = 128 + (r-128)*0.85 + 8
			ng = 128 + (g-128)*0.85 + 4
			nb = 128 + (b-128)*0.85
		default:
			return nil
		}

		buf[px] = clampByte(r + (nr-r)*strength)
		buf[px+1] = clampByte(g + (ng-g)*strength)
		buf[px+2] = clampByte(b + (nb-b)*strength)
	}
	return nil
}

func clampByte(v float64) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

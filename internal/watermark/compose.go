// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

// Package watermark stamps listing photos with the marketplace overlay. The
// worker consumes watermark jobs; Compose is the pure compositing step.
package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Anchor names a corner or the center of the base image.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top_left"
	AnchorTopRight    Anchor = "top_right"
	AnchorBottomLeft  Anchor = "bottom_left"
	AnchorBottomRight Anchor = "bottom_right"
	AnchorCenter      Anchor = "center"
)

// Anchors lists every valid placement.
var Anchors = []Anchor{
	AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight, AnchorCenter,
}

// Valid reports whether a is a known anchor.
func (a Anchor) Valid() bool {
	for _, known := range Anchors {
		if a == known {
			return true
		}
	}
	return false
}

// Options control the compositing step.
type Options struct {
	// Anchor positions the overlay on the base image.
	Anchor Anchor
	// SizeRatio scales the overlay to this fraction of the base width,
	// preserving the overlay's aspect ratio.
	SizeRatio float64
	// Opacity multiplies the overlay's own alpha channel, 0..1.
	Opacity float64
	// MarginRatio insets corner anchors by this fraction of the base width.
	MarginRatio float64
	// JPEGQuality is the output encoding quality, 1..100.
	JPEGQuality int
}

// DefaultOptions mirror the marketplace's standard photo treatment.
func DefaultOptions() Options {
	return Options{
		Anchor:      AnchorCenter,
		SizeRatio:   0.15,
		Opacity:     0.7,
		MarginRatio: 0.02,
		JPEGQuality: 95,
	}
}

// Compose stamps overlay onto base and returns the result as JPEG. Both
// inputs are encoded images; the overlay is expected to carry an alpha
// channel. Compose never mutates its inputs.
func Compose(base, overlay []byte, opts Options) ([]byte, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	baseImg, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("decode base image: %w", err)
	}
	overlayImg, _, err := image.Decode(bytes.NewReader(overlay))
	if err != nil {
		return nil, fmt.Errorf("decode overlay image: %w", err)
	}

	bounds := baseImg.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, baseImg, bounds.Min, draw.Src)

	scaled := scaleOverlay(overlayImg, bounds.Dx(), opts.SizeRatio)
	offset := anchorOffset(bounds, scaled.Bounds(), opts.Anchor, opts.MarginRatio)

	mask := image.NewUniform(color.Alpha{A: uint8(opts.Opacity*255 + 0.5)})
	target := scaled.Bounds().Add(offset)
	draw.DrawMask(canvas, target, scaled, scaled.Bounds().Min, mask, image.Point{}, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out.Bytes(), nil
}

func validateOptions(opts Options) error {
	if !opts.Anchor.Valid() {
		return fmt.Errorf("unknown anchor %q", opts.Anchor)
	}
	if opts.SizeRatio <= 0 || opts.SizeRatio > 1 {
		return fmt.Errorf("size ratio %.3f out of range (0, 1]", opts.SizeRatio)
	}
	if opts.Opacity < 0 || opts.Opacity > 1 {
		return fmt.Errorf("opacity %.3f out of range [0, 1]", opts.Opacity)
	}
	if opts.MarginRatio < 0 || opts.MarginRatio >= 0.5 {
		return fmt.Errorf("margin ratio %.3f out of range [0, 0.5)", opts.MarginRatio)
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range [1, 100]", opts.JPEGQuality)
	}
	return nil
}

// scaleOverlay resizes the overlay to sizeRatio of the base width, keeping
// aspect ratio. Catmull-Rom keeps text in overlays legible at small sizes.
func scaleOverlay(overlay image.Image, baseWidth int, sizeRatio float64) *image.RGBA {
	ob := overlay.Bounds()
	targetW := int(float64(baseWidth)*sizeRatio + 0.5)
	if targetW < 1 {
		targetW = 1
	}
	targetH := int(float64(targetW)*float64(ob.Dy())/float64(ob.Dx()) + 0.5)
	if targetH < 1 {
		targetH = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), overlay, ob, xdraw.Over, nil)
	return scaled
}

// anchorOffset returns the top-left placement point for the overlay.
func anchorOffset(base, overlay image.Rectangle, anchor Anchor, marginRatio float64) image.Point {
	margin := int(float64(base.Dx())*marginRatio + 0.5)
	ow, oh := overlay.Dx(), overlay.Dy()

	switch anchor {
	case AnchorTopLeft:
		return base.Min.Add(image.Pt(margin, margin))
	case AnchorTopRight:
		return base.Min.Add(image.Pt(base.Dx()-ow-margin, margin))
	case AnchorBottomLeft:
		return base.Min.Add(image.Pt(margin, base.Dy()-oh-margin))
	case AnchorBottomRight:
		return base.Min.Add(image.Pt(base.Dx()-ow-margin, base.Dy()-oh-margin))
	default: // AnchorCenter
		return base.Min.Add(image.Pt((base.Dx()-ow)/2, (base.Dy()-oh)/2))
	}
}

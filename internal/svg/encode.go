// Package svg serialises a render.Scene as an SVG document. The scene is
// always drawn in its logical viewBox; Options only set the outer pixel
// size, so the same scene serves the on-screen and the export view.
package svg

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/talgya/bodygraph/internal/geometry"
	"github.com/talgya/bodygraph/internal/render"
)

// Size presets, in output pixels of width.
const (
	ScreenWidth = 234
	ExportWidth = 1170
)

// Options controls the outer document.
type Options struct {
	Width int // Output width in pixels; height follows the canvas aspect. 0 = ScreenWidth.
}

// Height returns the output height for the configured width.
func (o Options) Height(scene render.Scene) int {
	w := o.width()
	if scene.Width == 0 {
		return w
	}
	return int(float64(w)*scene.Height/scene.Width + 0.5)
}

func (o Options) width() int {
	if o.Width <= 0 {
		return ScreenWidth
	}
	return o.Width
}

// Encode writes scene to w as a standalone SVG document.
func Encode(w io.Writer, scene render.Scene, opts Options) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %s %s">`,
		opts.width(), opts.Height(scene), geometry.Num(scene.Width), geometry.Num(scene.Height))
	bw.WriteString("\n")

	writeDefs(bw, scene.Filters)

	if scene.Background != "" {
		fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", escape(scene.Background))
	}

	layer := -1
	for _, op := range scene.Ops {
		if int(op.Layer) != layer {
			if layer >= 0 {
				bw.WriteString("</g>\n")
			}
			layer = int(op.Layer)
			fmt.Fprintf(bw, `<g id="layer-%s"`, op.Layer)
			if op.Layer == render.LayerMarkers && scene.FontFamily != "" {
				fmt.Fprintf(bw, ` font-family="%s" text-anchor="middle" dominant-baseline="central"`, escape(scene.FontFamily))
			}
			bw.WriteString(">\n")
		}
		writeOp(bw, op)
	}
	if layer >= 0 {
		bw.WriteString("</g>\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// EncodeString is Encode into a string.
func EncodeString(scene render.Scene, opts Options) string {
	var b strings.Builder
	_ = Encode(&b, scene, opts)
	return b.String()
}

func writeDefs(bw *bufio.Writer, filters []render.Filter) {
	if len(filters) == 0 {
		return
	}
	bw.WriteString("<defs>\n")
	for _, f := range filters {
		fmt.Fprintf(bw, `<filter id="%s" x="-50%%" y="-50%%" width="200%%" height="200%%">`, escape(f.ID))
		fmt.Fprintf(bw, `<feGaussianBlur in="SourceAlpha" stdDeviation="%s" result="blur"/>`, geometry.Num(f.Blur))
		fmt.Fprintf(bw, `<feFlood flood-color="%s" flood-opacity="0.75"/>`, escape(f.Color))
		bw.WriteString(`<feComposite in2="blur" operator="in" result="glow"/>`)
		bw.WriteString(`<feMerge><feMergeNode in="glow"/><feMergeNode in="SourceGraphic"/></feMerge>`)
		bw.WriteString("</filter>\n")
	}
	bw.WriteString("</defs>\n")
}

func writeOp(bw *bufio.Writer, op render.Op) {
	switch op.Kind {
	case render.KindPath:
		fmt.Fprintf(bw, `<path id="%s" d="%s"`, escape(op.ID), op.D)
	case render.KindCircle:
		fmt.Fprintf(bw, `<circle id="%s" cx="%s" cy="%s" r="%s"`, escape(op.ID),
			geometry.Num(op.CX), geometry.Num(op.CY), geometry.Num(op.R))
	case render.KindText:
		fmt.Fprintf(bw, `<text id="%s" x="%s" y="%s"`, escape(op.ID), geometry.Num(op.X), geometry.Num(op.Y))
	default:
		return
	}

	if op.Offset != nil {
		fmt.Fprintf(bw, ` transform="translate(%s %s)"`, geometry.Num(op.Offset.X), geometry.Num(op.Offset.Y))
	}
	writeStyle(bw, op.Style)

	if op.Kind == render.KindText {
		fmt.Fprintf(bw, ">%s</text>\n", escape(op.Text))
		return
	}
	bw.WriteString("/>\n")
}

func writeStyle(bw *bufio.Writer, s render.Style) {
	attr := func(name, v string) {
		if v != "" {
			fmt.Fprintf(bw, ` %s="%s"`, name, escape(v))
		}
	}
	num := func(name string, v float64) {
		if v != 0 {
			fmt.Fprintf(bw, ` %s="%s"`, name, geometry.Num(v))
		}
	}
	attr("fill", s.Fill)
	attr("stroke", s.Stroke)
	num("stroke-width", s.StrokeWidth)
	attr("stroke-linecap", s.LineCap)
	num("opacity", s.Opacity)
	num("font-size", s.FontSize)
	attr("font-family", s.FontFamily)
	attr("font-weight", s.FontWeight)
	if s.Filter != "" {
		fmt.Fprintf(bw, ` filter="url(#%s)"`, escape(s.Filter))
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return xmlEscaper.Replace(s)
}

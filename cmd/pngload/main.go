// Command pngload decodes a PNG file with this module's decoder and
// re-encodes it with the standard library's image/png, so the decoded
// pixels can be inspected in an ordinary PNG file.
//
// Generalized from 928799934-go-png-cgbi/example/main.go's
// open-decode-encode shape.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	pngload "github.com/trillek-team/trillek-pngload"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("usage: pngload <in.png> <out.png>")
		os.Exit(1)
	}
	if err := convert(os.Args[1], os.Args[2]); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func convert(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	pb := &pngload.MemoryPixelBuffer{}
	if err := pngload.Load(pngload.NewReaderByteSource(in), pb); err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return png.Encode(out, toImage(pb))
}

// toImage wraps a decoded MemoryPixelBuffer as a standard image.Image,
// dispatching on ColorMode the way the decoder itself avoids virtual
// dispatch elsewhere.
func toImage(pb *pngload.MemoryPixelBuffer) image.Image {
	w, h := pb.Width(), pb.Height()
	switch pb.Mode() {
	case pngload.ColorGray:
		img := image.NewGray(image.Rect(0, 0, w, h))
		img.Pix = pb.Bytes()
		img.Stride = pb.Pitch()
		return img
	case pngload.ColorGrayAlpha:
		return &grayAlphaImage{pb: pb, rect: image.Rect(0, 0, w, h)}
	case pngload.ColorRGBA:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		img.Pix = pb.Bytes()
		img.Stride = pb.Pitch()
		return img
	default: // ColorRGB: image/png has no native RGB-only model, widen to RGBA
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		src := pb.Bytes()
		pitch := pb.Pitch()
		for y := 0; y < h; y++ {
			srcRow := src[y*pitch : y*pitch+w*3]
			destRow := img.Pix[y*img.Stride : y*img.Stride+w*4]
			for x := 0; x < w; x++ {
				destRow[4*x+0] = srcRow[3*x+0]
				destRow[4*x+1] = srcRow[3*x+1]
				destRow[4*x+2] = srcRow[3*x+2]
				destRow[4*x+3] = 255
			}
		}
		return img
	}
}

// grayAlphaImage adapts a gray+alpha MemoryPixelBuffer to image.Image;
// the standard library has no built-in gray+alpha model.
type grayAlphaImage struct {
	pb   *pngload.MemoryPixelBuffer
	rect image.Rectangle
}

func (g *grayAlphaImage) ColorModel() color.Model { return color.NRGBAModel }
func (g *grayAlphaImage) Bounds() image.Rectangle { return g.rect }
func (g *grayAlphaImage) At(x, y int) color.Color {
	pitch := g.pb.Pitch()
	off := y*pitch + x*2
	b := g.pb.Bytes()
	v, a := b[off], b[off+1]
	return color.NRGBA{R: v, G: v, B: v, A: a}
}

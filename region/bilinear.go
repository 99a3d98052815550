package region

import (
	"image"

	iface "EdgeLPR/interface"

	"golang.org/x/image/draw"
)

// Bilinear is a pure-Go Resampler built on x/image/draw.
type Bilinear struct{}

func (Bilinear) Resample(frame iface.Frame, rect image.Rectangle, width, height int) ([]byte, error) {
	src := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		row := ((rect.Min.Y+y)*frame.Width + rect.Min.X) * iface.Channels
		for x := 0; x < rect.Dx(); x++ {
			s := row + x*iface.Channels
			d := src.PixOffset(x, y)
			src.Pix[d+0] = frame.Pix[s+0]
			src.Pix[d+1] = frame.Pix[s+1]
			src.Pix[d+2] = frame.Pix[s+2]
			src.Pix[d+3] = 0xff
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]byte, 0, width*height*iface.Channels)
	for i := 0; i < len(dst.Pix); i += 4 {
		out = append(out, dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
	}
	return out, nil
}

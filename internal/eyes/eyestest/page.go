package eyestest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// Page is an in-memory eyes.Page that renders solid PNG screenshots.
type Page struct {
	mu sync.Mutex

	Width, Height int
	PageHeight    int // full-page height; defaults to Height
	PageTitle     string
	ScreenshotErr error

	Shots []bool // fullPage flag of each screenshot taken
}

func (p *Page) SetViewportSize(_ context.Context, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Width, p.Height = width, height
	return nil
}

func (p *Page) Screenshot(_ context.Context, fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.Shots = append(p.Shots, fullPage)

	w, h := p.Width, p.Height
	if fullPage && p.PageHeight > h {
		h = p.PageHeight
	}
	return SolidPNG(w, h), nil
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

// SolidPNG encodes a w x h white image.
func SolidPNG(w, h int) []byte {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

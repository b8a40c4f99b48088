package transform

import (
	"bytes"
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/minify"
)

// Image recompresses raster images and minifies SVG. The result is kept only
// when it is smaller than the input, otherwise the original bytes are
// copied. Other file types, fonts included, pass through.
type Image struct {
	jpegQuality int
	minifier    *minify.Minifier
}

func NewImage(jpegQuality int) *Image {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 85
	}
	return &Image{jpegQuality: jpegQuality, minifier: minify.New(minify.All())}
}

func (i *Image) Name() string { return "imagemin" }

func (i *Image) Transform(ctx context.Context, f File) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(f.Rel)) {
	case ".png":
		out, err = i.png(f.Contents)
	case ".jpg", ".jpeg":
		out, err = i.jpeg(f.Contents)
	case ".gif":
		out, err = i.gif(f.Contents)
	case ".svg":
		out, err = i.minifier.SVG(f.Source, f.Contents)
		if err != nil {
			return File{}, err
		}
	default:
		return f, nil
	}
	if err != nil {
		return File{}, diagnostic(i.Name(), f, 0, 0, err.Error())
	}

	if len(out) >= len(f.Contents) {
		return f, nil
	}
	return File{Source: f.Source, Rel: f.Rel, Contents: out}, nil
}

func (i *Image) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (i *Image) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: i.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (i *Image) gif(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ImageInfo describes one image XObject referenced by a page.
type ImageInfo struct {
	Page             int    `json:"page"`
	Index            int    `json:"index"`
	Name             string `json:"name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Format           string `json:"format"`
	ColorSpace       string `json:"color_space,omitempty"`
	BitsPerComponent int    `json:"bits_per_component,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Images enumerates the image XObjects of every page. Pages that fail to
// enumerate contribute a single error record instead of aborting the scan.
func (d *Document) Images() []ImageInfo {
	var out []ImageInfo
	for n := 1; n <= d.pageCount; n++ {
		imgs, err := d.PageImages(n)
		if err != nil {
			out = append(out, ImageInfo{Page: n, Error: err.Error()})
			continue
		}
		out = append(out, imgs...)
	}
	return out
}

// PageImages enumerates the image XObjects referenced by page n's resource
// dictionary.
func (d *Document) PageImages(n int) (imgs []ImageInfo, err error) {
	if d.reader == nil {
		return nil, fmt.Errorf("page %d: no reader", n)
	}
	if n < 1 || n > d.pageCount {
		return nil, fmt.Errorf("page %d: out of range 1..%d", n, d.pageCount)
	}
	defer func() {
		if r := recover(); r != nil {
			imgs, err = nil, fmt.Errorf("page %d images: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", n)
	}
	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return nil, nil
	}
	xObjects := resources.Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return nil, nil
	}

	index := 0
	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}
		if sub := obj.Key("Subtype"); sub.IsNull() || sub.Name() != "Image" {
			continue
		}
		img := ImageInfo{
			Page:   n,
			Index:  index,
			Name:   key,
			Width:  int(obj.Key("Width").Int64()),
			Height: int(obj.Key("Height").Int64()),
			Format: imageFormat(obj.Key("Filter")),
		}
		if cs := obj.Key("ColorSpace"); cs.Kind() == pdf.Name {
			img.ColorSpace = cs.Name()
		}
		if bpc := obj.Key("BitsPerComponent"); bpc.Kind() == pdf.Integer {
			img.BitsPerComponent = int(bpc.Int64())
		}
		imgs = append(imgs, img)
		index++
	}
	return imgs, nil
}

// imageFormat maps a stream filter to the image format it encodes.
func imageFormat(filter pdf.Value) string {
	name := ""
	switch filter.Kind() {
	case pdf.Name:
		name = filter.Name()
	case pdf.Array:
		if filter.Len() > 0 {
			name = filter.Index(0).Name()
		}
	}
	switch name {
	case "DCTDecode":
		return "jpeg"
	case "JPXDecode":
		return "jpx"
	case "CCITTFaxDecode":
		return "tiff"
	case "JBIG2Decode":
		return "jbig2"
	case "FlateDecode", "LZWDecode", "RunLengthDecode":
		return "png"
	default:
		return "raw"
	}
}

// HasImageStreams reports whether the document carries any image XObject,
// using pdfcpu's optimization index with an xref scan fallback. Works even
// when the text reader could not open the file.
func (d *Document) HasImageStreams() bool {
	if d.ctx.Optimize != nil {
		for n := 1; n <= d.pageCount; n++ {
			if len(pdfcpu.ImageObjNrs(d.ctx, n)) > 0 {
				return true
			}
		}
	}
	for _, entry := range d.ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

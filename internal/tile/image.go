package tile

import "fmt"

// IndexedImage is a 1 byte per pixel palette-index buffer.
type IndexedImage struct {
	Pix    []byte
	Width  int
	Height int
}

// NewIndexedImage allocates a zeroed (fully transparent) image.
func NewIndexedImage(width, height int) IndexedImage {
	return IndexedImage{Pix: make([]byte, width*height), Width: width, Height: height}
}

// Validate checks that the buffer matches the dimensions.
func (im IndexedImage) Validate() error {
	if im.Width <= 0 || im.Height <= 0 {
		return fmt.Errorf("invalid indexed image size %dx%d", im.Width, im.Height)
	}
	if len(im.Pix) < im.Width*im.Height {
		return fmt.Errorf("indexed image buffer holds %d bytes, need %d", len(im.Pix), im.Width*im.Height)
	}
	return nil
}

// TileCount is the number of whole tiles in the image.
func (im IndexedImage) TileCount() int {
	cols, rows := GridSize(im.Width, im.Height)
	return cols * rows
}

// Clone returns a deep copy.
func (im IndexedImage) Clone() IndexedImage {
	pix := make([]byte, len(im.Pix))
	copy(pix, im.Pix)
	return IndexedImage{Pix: pix, Width: im.Width, Height: im.Height}
}

// CopyTile copies the 8x8 block at (srcX, srcY) of src (stride srcStride)
// into dst at (dstX, dstY) with stride dstStride. Pixels that fall outside
// either buffer are skipped.
func CopyTile(dst []byte, dstX, dstY, dstStride int, src []byte, srcX, srcY, srcStride int) {
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			si := (srcY+y)*srcStride + srcX + x
			di := (dstY+y)*dstStride + dstX + x
			if si < 0 || si >= len(src) || di < 0 || di >= len(dst) {
				continue
			}
			dst[di] = src[si]
		}
	}
}

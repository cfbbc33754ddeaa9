package main

import (
	"io"
	"sync"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/buffer"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/decode"
)

// writingDecoder wraps another Decoder and appends every successfully
// decoded image's payload to w (the --output sink) before returning it
// unchanged, so the decode queue still fills normally for a renderer.
type writingDecoder struct {
	mu    sync.Mutex
	inner decode.Decoder
	w     io.Writer
}

func newWritingDecoder(inner decode.Decoder, w io.Writer) *writingDecoder {
	return &writingDecoder{inner: inner, w: w}
}

func (d *writingDecoder) Decode(slot *buffer.Slot) (decode.Image, error) {
	img, err := d.inner.Decode(slot)
	if err != nil {
		return decode.Image{}, err
	}
	if d.w != nil && !img.Empty() {
		d.mu.Lock()
		_, _ = d.w.Write(img.Pixels)
		d.mu.Unlock()
	}
	return img, nil
}

package main

import (
	"io"
	"strconv"

	"github.com/yunginnanet/ftdi-max30003/pkg/max30003"
)

// sampleWriter prints one "raw,mv_x10000" line per sample. The millivolt
// column is truncated toward zero.
type sampleWriter struct {
	w   io.Writer
	buf []byte
	n   int
	err error
}

func newSampleWriter(w io.Writer) *sampleWriter {
	return &sampleWriter{w: w, buf: make([]byte, 0, 32)}
}

func (sw *sampleWriter) write(s max30003.Sample) error {
	if sw.err != nil {
		return sw.err
	}
	sw.buf = strconv.AppendInt(sw.buf[:0], int64(s.Raw), 10)
	sw.buf = append(sw.buf, ',')
	sw.buf = strconv.AppendInt(sw.buf, int64(int32(s.Millivolts*10000)), 10)
	sw.buf = append(sw.buf, '\n')
	if _, sw.err = sw.w.Write(sw.buf); sw.err == nil {
		sw.n++
	}
	return sw.err
}

func (sw *sampleWriter) count() int {
	return sw.n
}

package max30003

import "sync"

// Every MAX30003 transaction is one command byte plus three data bytes.
const frameLen = 4

var frames = &sync.Pool{New: func() interface{} { return make([]byte, frameLen) }}

func getFrame() []byte {
	return frames.Get().([]byte)
}

func putFrame(b []byte) {
	b[0], b[1], b[2], b[3] = 0, 0, 0, 0
	frames.Put(b)
}

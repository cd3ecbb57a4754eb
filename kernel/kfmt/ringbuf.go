package kfmt

import "io"

// ringBufferSize is the capacity of the early output buffer. Must be a power
// of 2.
const ringBufferSize = 4096

// ringBuffer holds output emitted before an output sink is attached. Once
// full, each write drops the oldest buffered bytes.
type ringBuffer struct {
	data  [ringBufferSize]byte
	start int
	n     int
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int { return rb.n }

// Write appends p to the buffer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	written := len(p)
	if len(p) > ringBufferSize {
		p = p[len(p)-ringBufferSize:]
	}

	for _, b := range p {
		rb.data[(rb.start+rb.n)&(ringBufferSize-1)] = b
		if rb.n == ringBufferSize {
			rb.start = (rb.start + 1) & (ringBufferSize - 1)
			continue
		}
		rb.n++
	}

	return written, nil
}

// Read drains up to len(p) of the oldest buffered bytes into p. It returns
// io.EOF once the buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.n == 0 {
		return 0, io.EOF
	}

	var read int
	for read < len(p) && rb.n > 0 {
		chunk := ringBufferSize - rb.start
		if chunk > rb.n {
			chunk = rb.n
		}

		c := copy(p[read:], rb.data[rb.start:rb.start+chunk])
		read += c
		rb.n -= c
		rb.start = (rb.start + c) & (ringBufferSize - 1)
	}

	return read, nil
}

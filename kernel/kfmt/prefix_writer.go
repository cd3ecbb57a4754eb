package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. Boot code uses one PrefixWriter per
// CPU so that interleaved bring-up logs can be told apart.
type PrefixWriter struct {
	// A writer where all writes get sent to. If nil, writes are routed to
	// the active output sink (or the early ring buffer).
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	bytesAfterPrefix int
}

// NewCPUWriter returns a PrefixWriter that tags each line with "[cpuN] ".
func NewCPUWriter(sink io.Writer, id uint16) *PrefixWriter {
	var (
		p      printer
		prefix byteSink
	)
	p.w = &prefix
	p.printf("[cpu%d] ", []interface{}{id})

	return &PrefixWriter{Sink: sink, Prefix: []byte(prefix)}
}

// byteSink is a minimal append-only io.Writer.
type byteSink []byte

func (b *byteSink) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in the
// number of written bytes returned by this method.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var (
		written              int
		startIndex, curIndex int
		sink                 = w.sink()
	)

	if w.bytesAfterPrefix == 0 && len(p) != 0 {
		if _, err := sink.Write(w.Prefix); err != nil {
			return 0, err
		}
	}

	for ; curIndex < len(p); curIndex++ {
		if p[curIndex] != '\n' {
			continue
		}

		n, err := sink.Write(p[startIndex : curIndex+1])
		written += n
		if err != nil {
			return written, err
		}
		if curIndex+1 != len(p) {
			if _, err = sink.Write(w.Prefix); err != nil {
				return written, err
			}
		}
		w.bytesAfterPrefix = 0
		startIndex = curIndex + 1
	}

	if startIndex < curIndex {
		n, err := sink.Write(p[startIndex:curIndex])
		written += n
		w.bytesAfterPrefix = n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

func (w *PrefixWriter) sink() io.Writer {
	switch {
	case w.Sink != nil:
		return w.Sink
	case outputSink != nil:
		return outputSink
	default:
		return &earlyPrintBuffer
	}
}

// Package kfmt implements the formatted output used by every kernel
// subsystem. The formatter supports a small subset of the fmt verbs and does
// not depend on reflection so it stays usable on allocation-sensitive paths.
package kfmt

import (
	"io"
	"nova/kernel/sync"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// earlyPrintBuffer is a ring buffer that stores Printf output before an
	// output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// outputLock serializes Fprintf calls so lines emitted by different
	// CPUs never interleave.
	outputLock sync.Spinlock
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputLock.Acquire()
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
	outputLock.Release()
}

// GetOutputSink returns the currently active output sink or nil if output is
// still being buffered.
func GetOutputSink() io.Writer {
	outputLock.Acquire()
	defer outputLock.Release()
	return outputSink
}

// Printf provides a minimal Printf implementation. Similar to fmt.Printf,
// this version of printf supports the following subset of formatting verbs:
//
// Strings:
//		%s the uninterpreted bytes of the string or byte slice
//
// Integers:
//              %o base 8
//              %d base 10
//              %x base 16, with lower-case letters for a-f
//
// Booleans:
//              %t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the verb.
// If absent, the width is whatever is necessary to represent the value.
//
// String values with length less than the specified width will be left-padded with
// spaces. Integer values formatted as base-10 will also be left-padded with spaces.
// Finally, integer values formatted as base-16 will be left-padded with zeroes.
//
// The output of Printf is written to the active output sink. If no sink is
// attached, then the output is buffered into a ring-buffer and replayed when
// SetOutputSink is called.
func Printf(format string, args ...interface{}) {
	outputLock.Acquire()
	p := printer{w: outputSink}
	p.printf(format, args)
	outputLock.Release()
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	outputLock.Acquire()
	p := printer{w: w}
	p.printf(format, args)
	outputLock.Release()
}

// printer holds the state for a single formatting call. Its scratch buffer
// lives on the caller's stack so concurrent calls never share state.
type printer struct {
	w       io.Writer
	scratch [maxBufSize + 1]byte
}

func (p *printer) printf(format string, args []interface{}) {
	var (
		nextArgIndex         int
		blockStart, blockEnd int
		padLen               int
		fmtLen               = len(format)
	)

	for blockEnd < fmtLen {
		if format[blockEnd] != '%' {
			blockEnd++
			continue
		}

		p.writeString(format[blockStart:blockEnd])

		// Scan til we hit the format character
		padLen = 0
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh := format[blockEnd]
			switch {
			case nextCh == '%':
				p.writeString("%")
				break parseFmt
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'd' || nextCh == 'x' || nextCh == 'o' || nextCh == 's' || nextCh == 't':
				// Run out of args to print
				if nextArgIndex >= len(args) {
					p.write(errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					p.fmtInt(args[nextArgIndex], 8, padLen)
				case 'd':
					p.fmtInt(args[nextArgIndex], 10, padLen)
				case 'x':
					p.fmtInt(args[nextArgIndex], 16, padLen)
				case 's':
					p.fmtString(args[nextArgIndex], padLen)
				case 't':
					p.fmtBool(args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			}

			// reached end of formatting string without finding a verb
			p.write(errNoVerb)
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart < fmtLen {
		p.writeString(format[blockStart:])
	}

	// Check for unused args
	for ; nextArgIndex < len(args); nextArgIndex++ {
		p.write(errExtraArg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func (p *printer) fmtBool(v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		p.write(errWrongArgType)
	case bVal:
		p.write(trueValue)
	default:
		p.write(falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func (p *printer) fmtString(v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		p.repeat(' ', padLen-len(castedVal))
		p.writeString(castedVal)
	case []byte:
		p.repeat(' ', padLen-len(castedVal))
		p.write(castedVal)
	default:
		p.write(errWrongArgType)
	}
}

// repeat writes count bytes with value ch.
func (p *printer) repeat(ch byte, count int) {
	p.scratch[0] = ch
	for i := 0; i < count; i++ {
		p.write(p.scratch[:1])
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. This function supports all built-in signed
// and unsigned integer types and base 8, 10 and 16 output.
func (p *printer) fmtInt(v interface{}, base, padLen int) {
	var (
		sval             int64
		uval             uint64
		divider          = uint64(base)
		padCh            byte
		left, right, end int
		buf              = p.scratch[:]
	)

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	if base == 10 {
		padCh = ' '
	} else {
		padCh = '0'
	}

	switch castedVal := v.(type) {
	case uint8:
		uval = uint64(castedVal)
	case uint16:
		uval = uint64(castedVal)
	case uint32:
		uval = uint64(castedVal)
	case uint64:
		uval = castedVal
	case uint:
		uval = uint64(castedVal)
	case uintptr:
		uval = uint64(castedVal)
	case int8:
		sval = int64(castedVal)
	case int16:
		sval = int64(castedVal)
	case int32:
		sval = int64(castedVal)
	case int64:
		sval = castedVal
	case int:
		sval = int64(castedVal)
	default:
		p.write(errWrongArgType)
		return
	}

	// Handle signs
	if sval < 0 {
		uval = uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	for right < maxBufSize {
		if remainder := uval % divider; remainder < 10 {
			buf[right] = byte(remainder) + '0'
		} else {
			// map values from 10 to 15 -> a-f
			buf[right] = byte(remainder-10) + 'a'
		}

		right++

		if uval /= divider; uval == 0 {
			break
		}
	}

	// Apply padding if required
	for ; right-left < padLen; right++ {
		buf[right] = padCh
	}

	// Apply negative sign to the rightmost blank character (if using enough padding);
	// otherwise append the sign as a new char
	if sval < 0 {
		for end = right - 1; buf[end] == ' '; end-- {
		}

		if end == right-1 {
			right++
		}

		buf[end+1] = '-'
	}

	// Reverse in place
	end = right
	for right = right - 1; left < right; left, right = left+1, right-1 {
		buf[left], buf[right] = buf[right], buf[left]
	}

	p.write(buf[0:end])
}

func (p *printer) writeString(s string) {
	for len(s) > 0 {
		n := copy(p.scratch[:], s)
		p.write(p.scratch[:n])
		s = s[n:]
	}
}

func (p *printer) write(b []byte) {
	if p.w != nil {
		_, _ = p.w.Write(b)
	} else {
		_, _ = earlyPrintBuffer.Write(b)
	}
}

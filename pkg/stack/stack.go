// Package stack captures and serializes call stacks the way the agent's
// hot path records "how did we get here" for each FieldModification and
// ContainerModification. The source captures a stack by throwing and
// immediately catching an exception; in Go the equivalent is
// runtime.Callers/runtime.CallersFrames — no exception needed, but the
// same "innermost first, own-package frames filtered out" contract holds.
package stack

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Frame is one (class, method, line) triple. "class" here is the Go
// package path of the calling function, the closest analogue to a JVM
// declaring class.
type Frame struct {
	Class  string
	Method string
	Line   int32
}

// Frames is an ordered, innermost-first call stack.
type Frames []Frame

// agentPackagePrefixes holds the import-path prefixes that Capture filters
// out, mirroring "excluding any frame whose class name is inside the
// agent's own package" (spec.md §4.6). Set by the agentruntime package at
// init time via SetOwnPackagePrefixes so this package doesn't need to know
// its callers' module path.
var agentPackagePrefixes []string

// SetOwnPackagePrefixes configures which import-path prefixes are
// considered "the agent's own package" and therefore excluded from
// captured stacks.
func SetOwnPackagePrefixes(prefixes ...string) {
	agentPackagePrefixes = append([]string(nil), prefixes...)
}

const maxFrames = 64

// Capture walks the caller's stack, skip frames up from Capture itself,
// and returns it with all agent-internal frames removed. It never returns
// an error: if the runtime can't resolve symbols for a PC the frame is
// simply omitted (spec.md's StackCaptureFailure — "the record is still
// appended with an empty stack" when capture fails entirely).
func Capture(skip int) Frames {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs) // +2: skip runtime.Callers and Capture
	if n == 0 {
		return nil
	}
	framesIter := runtime.CallersFrames(pcs[:n])
	out := make(Frames, 0, n)
	for {
		f, more := framesIter.Next()
		if f.Function != "" && !isOwnPackage(f.Function) {
			out = append(out, Frame{
				Class:  packageOf(f.Function),
				Method: funcNameOf(f.Function),
				Line:   int32(f.Line),
			})
		}
		if !more {
			break
		}
	}
	return out
}

func isOwnPackage(fn string) bool {
	for _, p := range agentPackagePrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}

// packageOf extracts the package path from a fully qualified function
// name such as "github.com/x/y/pkg/agentruntime.(*Runtime).CaptureFieldWrite".
func packageOf(fn string) string {
	lastSlash := strings.LastIndex(fn, "/")
	rest := fn
	prefix := ""
	if lastSlash >= 0 {
		prefix = fn[:lastSlash+1]
		rest = fn[lastSlash+1:]
	}
	if dot := strings.Index(rest, "."); dot >= 0 {
		return prefix + rest[:dot]
	}
	return fn
}

func funcNameOf(fn string) string {
	if idx := strings.LastIndex(fn, "."); idx >= 0 {
		return fn[idx+1:]
	}
	return fn
}

// Encode writes the wire format documented in spec.md §4.6/§6: a sequence
// of {utf8-length-prefixed class, utf8-length-prefixed method, int32 line}
// tuples, big-endian, no header and no frame count — a reader walks until
// EOF.
func Encode(w io.Writer, frames Frames) error {
	bw := bufio.NewWriter(w)
	for _, f := range frames {
		if err := writeString(bw, f.Class); err != nil {
			return err
		}
		if err := writeString(bw, f.Method); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.BigEndian, f.Line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// Decode parses the wire format Encode produces.
func Decode(r io.Reader) (Frames, error) {
	br := bufio.NewReader(r)
	var out Frames
	for {
		class, err := readString(br)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		method, err := readString(br)
		if err != nil {
			return out, fmt.Errorf("stack: truncated method after class %q: %w", class, err)
		}
		var line int32
		if err := binary.Read(br, binary.BigEndian, &line); err != nil {
			return out, fmt.Errorf("stack: truncated line for %s.%s: %w", class, method, err)
		}
		out = append(out, Frame{Class: class, Method: method, Line: line})
	}
}

func readString(r *bufio.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Bytes encodes frames and returns the ISO-8859-1 (Latin-1) byte
// representation the external get-stack contract promises (spec.md §6).
// Since Encode already produces raw bytes with no multi-byte-per-codepoint
// text encoding beyond UTF-8 class/method names, Bytes is a thin wrapper
// that panics only on an io.Writer failure, which bytes.Buffer never
// produces.
func Bytes(frames Frames) []byte {
	var buf bytes.Buffer
	if err := Encode(&buf, frames); err != nil {
		panic(fmt.Sprintf("stack: encoding to an in-memory buffer cannot fail: %v", err))
	}
	return buf.Bytes()
}

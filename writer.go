package chunkfile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BufferSize is the initial capacity in bytes of the write buffer.
	// Default: 4KiB.
	BufferSize int

	// Sync flushes the destination to stable storage on Close, if the
	// destination supports it (e.g. *os.File).
	// Default: false.
	Sync bool
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BufferSize < FileHeaderSize {
		oo.BufferSize = 1 << 12
	}

	return &oo
}

// Writer instances can write a chunk file. The whole forest is laid out
// in an internal buffer and written to the destination on Close.
type Writer struct {
	w io.Writer
	o *WriterOptions

	buf   []byte // file image, starting with the file header
	count uint32 // number of root chunks
	last  int    // start of the last root chunk, -1 if none

	closed bool
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer, o *WriterOptions) *Writer {
	o = o.norm()

	buf := make([]byte, 0, o.BufferSize)
	buf = FileHeader{Magic: Magic}.appendTo(buf)

	return &Writer{
		w:    w,
		o:    o,
		buf:  buf,
		last: -1,
	}
}

// Append serializes the chain starting at head, including all
// descendants, as root chunks. Subsequent calls extend the root chain.
// The tree is not modified.
func (w *Writer) Append(t *Tree, head NodeID) error {
	if w.closed {
		return errClosed
	}
	if t == nil {
		return fmt.Errorf("%w: missing tree", ErrInvalidArgument)
	}
	if err := t.validate(head); err != nil {
		return err
	}

	start := len(w.buf)
	count, last, err := w.writeChain(t, head)
	if err != nil {
		w.buf = w.buf[:start]
		return err
	}
	if uint64(w.count)+uint64(count) > math.MaxUint32 {
		w.buf = w.buf[:start]
		return fmt.Errorf("%w: too many root chunks", ErrInvalidArgument)
	}

	if w.last >= 0 {
		w.patchNext(w.last, start)
	}
	w.last = last
	w.count += count
	return nil
}

// Close writes the buffered file and closes the writer. It does not
// close the underlying destination.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	w.closed = true

	hdr := FileHeader{
		Magic: Magic,
		Size:  uint64(len(w.buf) - FileHeaderSize),
		Count: w.count,
	}
	hdr.putTo(w.buf)

	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if s, ok := w.w.(interface{ Sync() error }); ok && w.o.Sync {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return nil
}

// writeChain writes every node of the chain starting at n, each one
// followed by its own descendants. It returns the chain length and the
// start position of the last node.
func (w *Writer) writeChain(t *Tree, n NodeID) (uint32, int, error) {
	var count uint32
	var start int

	for ; n != NoNode; n = t.nodes[n].nextSibling {
		nd := &t.nodes[n]

		start = len(w.buf)
		hdr := nodeHeader{
			Tag:         nd.tag,
			ChildCount:  nd.childCount,
			PayloadSize: uint64(len(nd.payload)),
			Child:       nullLink,
			Next:        nullLink,
		}
		w.buf = hdr.appendTo(w.buf)
		w.buf = append(w.buf, nd.payload...)

		if nd.firstChild != NoNode {
			hdr.Child = w.offset(len(w.buf))

			m, _, err := w.writeChain(t, nd.firstChild)
			if err != nil {
				return 0, 0, err
			}
			if m != nd.childCount {
				return 0, 0, fmt.Errorf("%w: node %d has %d children in chain, expected %d", ErrInvalidArgument, n, m, nd.childCount)
			}
		}

		if nd.nextSibling != NoNode {
			hdr.Next = w.offset(len(w.buf))
		}
		hdr.putLinks(w.buf[start:])

		if count == math.MaxUint32 {
			return 0, 0, fmt.Errorf("%w: chain too long", ErrInvalidArgument)
		}
		count++
	}
	return count, start, nil
}

func (w *Writer) patchNext(start, pos int) {
	var hdr nodeHeader
	hdr.decode(w.buf[start:])
	hdr.Next = w.offset(pos)
	hdr.putLinks(w.buf[start:])
}

// offset converts a buffer position into a file-relative link.
func (w *Writer) offset(pos int) uint64 {
	return uint64(pos - FileHeaderSize)
}

// --------------------------------------------------------------------

// Marshal returns the encoded chunk file for the forest starting at head.
// A NoNode head produces an empty file.
func Marshal(t *Tree, head NodeID) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeForest(buf, t, head, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the forest starting at head to the named file,
// truncating it if it exists.
func WriteFile(name string, t *Tree, head NodeID, o *WriterOptions) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := writeForest(f, t, head, o); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func writeForest(dst io.Writer, t *Tree, head NodeID, o *WriterOptions) error {
	w := NewWriter(dst, o)
	if head != NoNode {
		if err := w.Append(t, head); err != nil {
			return err
		}
	}
	return w.Close()
}

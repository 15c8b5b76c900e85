package chunkfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sync"
)

// LoaderOptions define loader specific options.
type LoaderOptions struct {
	// MaxSize is the maximum number of bytes following the file header
	// that will be loaded into memory.
	// Default: 1GiB.
	MaxSize int64
}

func (o *LoaderOptions) norm() *LoaderOptions {
	var oo LoaderOptions
	if o != nil {
		oo = *o
	}

	if oo.MaxSize < 1 {
		oo.MaxSize = 1 << 30
	}
	if oo.MaxSize > math.MaxInt-FileHeaderSize {
		oo.MaxSize = math.MaxInt - FileHeaderSize
	}

	return &oo
}

// Load reads a complete chunk file from r into a single buffer and
// fixes up all links. The reader must be exhausted after the number of
// bytes declared by the file header.
func Load(r io.Reader, o *LoaderOptions) (*Forest, error) {
	o = o.norm()

	var head [FileHeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: short file header", ErrInvalidFormat)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	var hdr FileHeader
	hdr.decode(head[:])
	if hdr.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrInvalidFormat, hdr.Magic)
	}
	if hdr.Size > uint64(o.MaxSize) {
		return nil, fmt.Errorf("%w: %d bytes exceed the limit of %d", ErrOutOfMemory, hdr.Size, o.MaxSize)
	}

	buf := fetchBuffer(FileHeaderSize + int(hdr.Size))
	copy(buf, head[:])
	if _, err := io.ReadFull(r, buf[FileHeaderSize:]); errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		releaseBuffer(buf)
		return nil, fmt.Errorf("%w: truncated, expected %d bytes", ErrInvalidFormat, hdr.Size)
	} else if err != nil {
		releaseBuffer(buf)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	var extra [1]byte
	if _, err := io.ReadFull(r, extra[:]); err == nil {
		releaseBuffer(buf)
		return nil, fmt.Errorf("%w: trailing bytes after %d", ErrInvalidFormat, hdr.Size)
	} else if !errors.Is(err, io.EOF) {
		releaseBuffer(buf)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	f, err := NewForest(buf)
	if err != nil {
		releaseBuffer(buf)
		return nil, err
	}
	f.pooled = true
	return f, nil
}

// LoadFile loads the named chunk file.
func LoadFile(name string, o *LoaderOptions) (*Forest, error) {
	file, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer file.Close()

	return Load(file, o)
}

// NewForest fixes up a complete chunk file image in place and returns a
// forest backed by it. On success the forest takes ownership of data,
// on failure data is left unchanged.
func NewForest(data []byte) (*Forest, error) {
	if len(data) < FileHeaderSize {
		return nil, fmt.Errorf("%w: short file header", ErrInvalidFormat)
	}

	var hdr FileHeader
	hdr.decode(data)
	if hdr.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrInvalidFormat, hdr.Magic)
	}
	if hdr.Size != uint64(len(data)-FileHeaderSize) {
		return nil, fmt.Errorf("%w: size mismatch, header declares %d bytes, got %d", ErrInvalidFormat, hdr.Size, len(data)-FileHeaderSize)
	}

	fx := fixer{buf: data}
	if err := fx.run(hdr.Count); err != nil {
		return nil, err
	}
	fx.rewrite = true
	if err := fx.run(hdr.Count); err != nil {
		return nil, err
	}
	return &Forest{buf: data, hdr: hdr}, nil
}

// --------------------------------------------------------------------

// fixer checks the layout of a freshly read buffer and, once rewrite is
// set, turns its file-relative links into absolute buffer positions.
type fixer struct {
	buf     []byte
	rewrite bool
}

func (x *fixer) run(count uint32) error {
	if len(x.buf) == FileHeaderSize {
		if count != 0 {
			return fmt.Errorf("%w: %d root chunks declared in empty file", ErrInvalidFormat, count)
		}
		return nil
	}

	n, end, err := x.chain(FileHeaderSize)
	if err != nil {
		return err
	}
	if n != count {
		return fmt.Errorf("%w: found %d root chunks, header declares %d", ErrInvalidFormat, n, count)
	}
	if end != len(x.buf) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidFormat, len(x.buf)-end)
	}
	return nil
}

// chain walks the chain starting at pos. It returns the chain length
// and the position after the span of the last node.
func (x *fixer) chain(pos int) (uint32, int, error) {
	var count uint32
	for {
		if len(x.buf)-pos < NodeHeaderSize {
			return 0, 0, fmt.Errorf("%w: node header at %d out of bounds", ErrInvalidFormat, pos-FileHeaderSize)
		}

		var hdr nodeHeader
		hdr.decode(x.buf[pos:])

		avail := uint64(len(x.buf) - pos - NodeHeaderSize)
		if hdr.PayloadSize > avail {
			return 0, 0, fmt.Errorf("%w: payload of node at %d out of bounds", ErrInvalidFormat, pos-FileHeaderSize)
		}
		end := pos + NodeHeaderSize + int(hdr.PayloadSize)

		if hdr.Child != nullLink {
			child, err := x.absolute(hdr.Child, end)
			if err != nil {
				return 0, 0, err
			}

			m, cend, err := x.chain(child)
			if err != nil {
				return 0, 0, err
			}
			if m != hdr.ChildCount {
				return 0, 0, fmt.Errorf("%w: node at %d has %d children, header declares %d", ErrInvalidFormat, pos-FileHeaderSize, m, hdr.ChildCount)
			}
			hdr.Child = uint64(child)
			end = cend
		} else if hdr.ChildCount != 0 {
			return 0, 0, fmt.Errorf("%w: node at %d declares %d children without a child link", ErrInvalidFormat, pos-FileHeaderSize, hdr.ChildCount)
		}

		next := -1
		if hdr.Next != nullLink {
			abs, err := x.absolute(hdr.Next, end)
			if err != nil {
				return 0, 0, err
			}
			hdr.Next = uint64(abs)
			next = abs
		}
		if x.rewrite {
			hdr.putLinks(x.buf[pos:])
		}

		if count == math.MaxUint32 {
			return 0, 0, fmt.Errorf("%w: chain too long", ErrInvalidFormat)
		}
		count++

		if next < 0 {
			return count, end, nil
		}
		pos = next
	}
}

// absolute translates a stored link into a buffer position. Links always
// point at the byte immediately following the previous span.
func (x *fixer) absolute(link uint64, want int) (int, error) {
	if link != uint64(want-FileHeaderSize) {
		return 0, fmt.Errorf("%w: link to %d, expected %d", ErrInvalidFormat, link, want-FileHeaderSize)
	}
	return want, nil
}

// --------------------------------------------------------------------

// Forest is a loaded chunk forest. All chunks are views into a single
// buffer.
type Forest struct {
	buf    []byte
	hdr    FileHeader
	pooled bool
}

// Header returns the file header.
func (f *Forest) Header() FileHeader { return f.hdr }

// Len returns the number of root chunks.
func (f *Forest) Len() int { return int(f.hdr.Count) }

// Size returns the number of bytes following the file header.
func (f *Forest) Size() int64 { return int64(f.hdr.Size) }

// Root returns the first root chunk, if any.
func (f *Forest) Root() (Chunk, bool) {
	if len(f.buf) <= FileHeaderSize {
		return Chunk{}, false
	}
	return Chunk{buf: f.buf, pos: FileHeaderSize}, true
}

// Walk visits all chunks depth-first, parents before children and
// children before the next sibling. It stops at the first error returned
// by fn.
func (f *Forest) Walk(fn func(c Chunk, depth int) error) error {
	root, ok := f.Root()
	if !ok {
		return nil
	}
	return walkChunks(root, 0, fn)
}

func walkChunks(c Chunk, depth int, fn func(Chunk, int) error) error {
	for ok := true; ok; c, ok = c.Next() {
		if err := fn(c, depth); err != nil {
			return err
		}
		if child, ok := c.FirstChild(); ok {
			if err := walkChunks(child, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Release releases the forest and frees up resources. Neither the forest
// nor any of its chunks must be used after this method is called.
func (f *Forest) Release() {
	if f.pooled {
		releaseBuffer(f.buf)
	}
	f.buf = nil
	f.hdr = FileHeader{}
	f.pooled = false
}

// --------------------------------------------------------------------

// Chunk is a view of a single loaded chunk.
type Chunk struct {
	buf []byte
	pos int // absolute position of the node header
}

// Tag returns the chunk tag.
func (c Chunk) Tag() uint32 { return binary.LittleEndian.Uint32(c.buf[c.pos:]) }

// ChildCount returns the number of direct children.
func (c Chunk) ChildCount() int { return int(binary.LittleEndian.Uint32(c.buf[c.pos+4:])) }

// PayloadSize returns the payload length in bytes.
func (c Chunk) PayloadSize() int { return int(binary.LittleEndian.Uint64(c.buf[c.pos+8:])) }

// Payload returns the payload. The slice is a view into the forest
// buffer and must not be modified or used after the forest is released.
func (c Chunk) Payload() []byte {
	min := c.pos + NodeHeaderSize
	max := min + c.PayloadSize()
	return c.buf[min:max:max]
}

// Offset returns the position of the chunk relative to the end of the
// file header.
func (c Chunk) Offset() int64 { return int64(c.pos - FileHeaderSize) }

// FirstChild returns the first child chunk, if any.
func (c Chunk) FirstChild() (Chunk, bool) { return c.link(16) }

// Next returns the next sibling chunk, if any.
func (c Chunk) Next() (Chunk, bool) { return c.link(24) }

// Child returns the i-th direct child.
func (c Chunk) Child(i int) (Chunk, bool) {
	if i < 0 || i >= c.ChildCount() {
		return Chunk{}, false
	}

	child, ok := c.FirstChild()
	for ; ok && i > 0; i-- {
		child, ok = child.Next()
	}
	return child, ok
}

func (c Chunk) link(field int) (Chunk, bool) {
	v := binary.LittleEndian.Uint64(c.buf[c.pos+field:])
	if v == nullLink {
		return Chunk{}, false
	}
	return Chunk{buf: c.buf, pos: int(v)}, true
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}

package chunkfile

import (
	"encoding/binary"
	"errors"
)

// Magic identifies a chunk file ('MCHK').
const Magic uint32 = 'M'<<24 | 'C'<<16 | 'H'<<8 | 'K'

// DefaultTag is assigned to freshly allocated nodes.
const DefaultTag uint32 = 0x0BADF00D

const (
	// FileHeaderSize is the encoded size of the file header.
	FileHeaderSize = 16
	// NodeHeaderSize is the encoded size of each node header.
	NodeHeaderSize = 32
)

// nullLink marks an absent child or sibling link.
const nullLink = ^uint64(0)

var (
	// ErrInvalidArgument is returned on malformed builder calls.
	ErrInvalidArgument = errors.New("chunkfile: invalid argument")
	// ErrInvalidFormat is returned when data is not a valid chunk file.
	ErrInvalidFormat = errors.New("chunkfile: invalid format")
	// ErrIO wraps open, read and write failures.
	ErrIO = errors.New("chunkfile: i/o failure")
	// ErrNotFound is returned by LoadFile when the file does not exist.
	ErrNotFound = errors.New("chunkfile: not found")
	// ErrOutOfMemory is returned when a file is too large to be loaded.
	ErrOutOfMemory = errors.New("chunkfile: out of memory")
)

var errClosed = errors.New("chunkfile: is closed")

// FileHeader is stored at the beginning of every chunk file.
type FileHeader struct {
	Magic uint32 // always Magic
	Size  uint64 // number of bytes following the header
	Count uint32 // number of root chunks
}

func (h FileHeader) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Magic)
	dst = binary.LittleEndian.AppendUint64(dst, h.Size)
	return binary.LittleEndian.AppendUint32(dst, h.Count)
}

func (h FileHeader) putTo(p []byte) {
	binary.LittleEndian.PutUint32(p[0:], h.Magic)
	binary.LittleEndian.PutUint64(p[4:], h.Size)
	binary.LittleEndian.PutUint32(p[12:], h.Count)
}

func (h *FileHeader) decode(p []byte) {
	h.Magic = binary.LittleEndian.Uint32(p[0:])
	h.Size = binary.LittleEndian.Uint64(p[4:])
	h.Count = binary.LittleEndian.Uint32(p[12:])
}

// --------------------------------------------------------------------

type nodeHeader struct {
	Tag         uint32
	ChildCount  uint32
	PayloadSize uint64
	Child       uint64 // link to the first child
	Next        uint64 // link to the next sibling
}

func (h nodeHeader) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.Tag)
	dst = binary.LittleEndian.AppendUint32(dst, h.ChildCount)
	dst = binary.LittleEndian.AppendUint64(dst, h.PayloadSize)
	dst = binary.LittleEndian.AppendUint64(dst, h.Child)
	return binary.LittleEndian.AppendUint64(dst, h.Next)
}

func (h nodeHeader) putLinks(p []byte) {
	binary.LittleEndian.PutUint64(p[16:], h.Child)
	binary.LittleEndian.PutUint64(p[24:], h.Next)
}

func (h *nodeHeader) decode(p []byte) {
	h.Tag = binary.LittleEndian.Uint32(p[0:])
	h.ChildCount = binary.LittleEndian.Uint32(p[4:])
	h.PayloadSize = binary.LittleEndian.Uint64(p[8:])
	h.Child = binary.LittleEndian.Uint64(p[16:])
	h.Next = binary.LittleEndian.Uint64(p[24:])
}

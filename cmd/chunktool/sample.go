package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bsm/chunkfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sampleCmd = &cobra.Command{
	Use:   "sample DIR",
	Short: "Write sample chunk files",
	Long: `Write a set of sample chunk files into DIR and verify that each of them
loads back unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: sampleFunc,
}

func sampleFunc(_ *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	return writeSamples(args[0], log)
}

type sample struct {
	name  string
	build func(t *chunkfile.Tree) (chunkfile.NodeID, error)
}

var samples = []sample{
	{"singlechunk.bin", buildSingle},
	{"threechunk.bin", buildChain},
	{"subchunks.bin", buildSubchunks},
}

func writeSamples(dir string, log *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, s := range samples {
		name := filepath.Join(dir, s.name)

		t := chunkfile.NewTree()
		head, err := s.build(t)
		if err != nil {
			return fmt.Errorf("could not build %s: %w", s.name, err)
		}
		if err := chunkfile.WriteFile(name, t, head, writerOptions()); err != nil {
			return fmt.Errorf("could not write %s: %w", s.name, err)
		}
		if err := verify(name, t, head); err != nil {
			log.Error("sample verification failed", zap.String("file", name), zap.Error(err))
			return err
		}
		log.Info("sample written", zap.String("file", name), zap.Int("chunks", t.Len()))
	}
	return nil
}

// verify loads the named file and compares it chunk by chunk with the tree.
func verify(name string, t *chunkfile.Tree, head chunkfile.NodeID) error {
	f, err := chunkfile.LoadFile(name, loaderOptions())
	if err != nil {
		return err
	}
	defer f.Release()

	var nodes []chunkfile.NodeID
	_ = t.Walk(head, func(n chunkfile.NodeID, _ int) error {
		nodes = append(nodes, n)
		return nil
	})

	var i int
	err = f.Walk(func(c chunkfile.Chunk, _ int) error {
		if i >= len(nodes) {
			return fmt.Errorf("unexpected chunk at offset %d", c.Offset())
		}
		n := nodes[i]
		i++

		switch {
		case c.Tag() != t.Tag(n):
			return fmt.Errorf("chunk at offset %d: tag %#x, expected %#x", c.Offset(), c.Tag(), t.Tag(n))
		case c.ChildCount() != t.ChildCount(n):
			return fmt.Errorf("chunk at offset %d: %d children, expected %d", c.Offset(), c.ChildCount(), t.ChildCount(n))
		case !bytes.Equal(c.Payload(), t.Payload(n)):
			return fmt.Errorf("chunk at offset %d: payload mismatch", c.Offset())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if i != len(nodes) {
		return fmt.Errorf("loaded %d chunks, expected %d", i, len(nodes))
	}
	return nil
}

// --------------------------------------------------------------------

func makeTagged(t *chunkfile.Tree, tag uint32, data []byte) (chunkfile.NodeID, error) {
	n, err := t.Make(data)
	if err != nil {
		return chunkfile.NoNode, err
	}
	t.SetTag(n, tag)
	return n, nil
}

func sampleData() (up, next, down []byte) {
	up, next, down = make([]byte, 16), make([]byte, 16), make([]byte, 16)
	for i := 0; i < 16; i++ {
		up[i] = byte(i)
		next[i] = byte(i + 16)
		down[i] = byte(15 - i)
	}
	return
}

func buildSingle(t *chunkfile.Tree) (chunkfile.NodeID, error) {
	up, _, _ := sampleData()
	return makeTagged(t, 0x1111, up)
}

func buildTriple(t *chunkfile.Tree, link func(head, n chunkfile.NodeID) error) (chunkfile.NodeID, error) {
	up, next, down := sampleData()

	head, err := makeTagged(t, 0x1111, up)
	if err != nil {
		return chunkfile.NoNode, err
	}
	for _, x := range []struct {
		tag  uint32
		data []byte
	}{
		{0x2222, next},
		{0x3333, down},
	} {
		n, err := makeTagged(t, x.tag, x.data)
		if err != nil {
			return chunkfile.NoNode, err
		}
		if err := link(head, n); err != nil {
			return chunkfile.NoNode, err
		}
	}
	return head, nil
}

func buildChain(t *chunkfile.Tree) (chunkfile.NodeID, error) {
	return buildTriple(t, t.AppendSibling)
}

func buildSubchunks(t *chunkfile.Tree) (chunkfile.NodeID, error) {
	return buildTriple(t, t.AppendChild)
}

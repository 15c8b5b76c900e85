package chunkfile_test

import (
	"errors"

	"github.com/bsm/chunkfile"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tree", func() {
	var subject *chunkfile.Tree

	BeforeEach(func() {
		subject = chunkfile.NewTree()
	})

	It("should alloc", func() {
		n, err := subject.Alloc(8)
		Expect(err).NotTo(HaveOccurred())
		Expect(subject.Len()).To(Equal(1))
		Expect(subject.Tag(n)).To(Equal(chunkfile.DefaultTag))
		Expect(subject.Payload(n)).To(Equal(make([]byte, 8)))
		Expect(subject.ChildCount(n)).To(Equal(0))
		Expect(subject.FirstChild(n)).To(Equal(chunkfile.NoNode))
		Expect(subject.NextSibling(n)).To(Equal(chunkfile.NoNode))

		_, err = subject.Alloc(-1)
		Expect(err).To(MatchError(chunkfile.ErrInvalidArgument))
	})

	It("should make", func() {
		data := seq(0, 16)
		n, err := subject.Make(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(subject.Payload(n)).To(Equal(seq(0, 16)))

		// payload is copied
		data[0] = 99
		Expect(subject.Payload(n)[0]).To(Equal(byte(0)))

		n, err = subject.Make([]byte{})
		Expect(err).NotTo(HaveOccurred())
		Expect(subject.Payload(n)).To(BeEmpty())

		_, err = subject.Make(nil)
		Expect(err).To(MatchError(chunkfile.ErrInvalidArgument))
	})

	It("should append siblings", func() {
		a := makeNode(subject, 0x1111, seq(0, 4))
		b := makeNode(subject, 0x2222, seq(4, 4))
		c := makeNode(subject, 0x3333, seq(8, 4))

		Expect(subject.AppendSibling(a, b)).To(Succeed())
		Expect(subject.AppendSibling(a, c)).To(Succeed())

		Expect(subject.NextSibling(a)).To(Equal(b))
		Expect(subject.NextSibling(b)).To(Equal(c))
		Expect(subject.NextSibling(c)).To(Equal(chunkfile.NoNode))
		Expect(subject.LastSibling(a)).To(Equal(c))
		Expect(subject.LastSibling(b)).To(Equal(c))
		Expect(subject.ChildCount(a)).To(Equal(0))
	})

	It("should append children", func() {
		root := makeNode(subject, 0x1111, seq(0, 16))
		c1 := makeNode(subject, 0x2222, seq(16, 16))
		c2 := makeNode(subject, 0x3333, rev(16))
		g1 := makeNode(subject, 0x4444, []byte{})
		Expect(subject.AppendChild(c1, g1)).To(Succeed())

		Expect(subject.LastChild(root)).To(Equal(chunkfile.NoNode))
		Expect(subject.AppendChild(root, c1)).To(Succeed())
		Expect(subject.AppendChild(root, c2)).To(Succeed())

		Expect(subject.ChildCount(root)).To(Equal(2))
		Expect(subject.ChildCount(c1)).To(Equal(1))
		Expect(subject.FirstChild(root)).To(Equal(c1))
		Expect(subject.NextSibling(c1)).To(Equal(c2))
		Expect(subject.LastChild(root)).To(Equal(c2))

		Expect(subject.Child(root, 0)).To(Equal(c1))
		Expect(subject.Child(root, 1)).To(Equal(c2))
		Expect(subject.Child(root, 2)).To(Equal(chunkfile.NoNode))
		Expect(subject.Child(root, -1)).To(Equal(chunkfile.NoNode))
	})

	It("should count siblings appended to child chains", func() {
		root := makeNode(subject, 0x1111, seq(0, 4))
		c1 := makeNode(subject, 0x2222, seq(4, 4))
		c2 := makeNode(subject, 0x3333, seq(8, 4))
		c3 := makeNode(subject, 0x4444, []byte{})

		Expect(subject.AppendChild(root, c1)).To(Succeed())
		Expect(subject.AppendSibling(c1, c2)).To(Succeed())
		Expect(subject.AppendSibling(c2, c3)).To(Succeed())
		Expect(subject.ChildCount(root)).To(Equal(3))
		Expect(subject.Child(root, 2)).To(Equal(c3))

		data, err := chunkfile.Marshal(subject, root)
		Expect(err).NotTo(HaveOccurred())
		f, err := chunkfile.NewForest(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(forestShape(f)).To(Equal([]shape{
			{Tag: 0x1111, Payload: seq(0, 4), NumKids: 3},
			{Tag: 0x2222, Depth: 1, Payload: seq(4, 4)},
			{Tag: 0x3333, Depth: 1, Payload: seq(8, 4)},
			{Tag: 0x4444, Depth: 1, Payload: []byte{}},
		}))
	})

	It("should not merge chains into child chains", func() {
		root := makeNode(subject, 0x1111, seq(0, 4))
		c1 := makeNode(subject, 0x2222, seq(0, 4))
		a := makeNode(subject, 0x3333, seq(0, 4))
		b := makeNode(subject, 0x4444, seq(0, 4))
		Expect(subject.AppendSibling(a, b)).To(Succeed())

		Expect(subject.AppendChild(root, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendChild(root, c1)).To(Succeed())
		Expect(subject.AppendSibling(c1, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.ChildCount(root)).To(Equal(1))

		// root chains may still be joined
		Expect(subject.AppendSibling(root, a)).To(Succeed())
		Expect(subject.LastSibling(root)).To(Equal(b))
		Expect(subject.ChildCount(root)).To(Equal(1))
	})

	It("should link deep trees", func() {
		const depth = 20000

		root := makeNode(subject, 0, []byte{})
		last := root
		for i := 1; i < depth; i++ {
			n := makeNode(subject, uint32(i), []byte{})
			Expect(subject.AppendChild(last, n)).To(Succeed())
			last = n
		}
		Expect(subject.Len()).To(Equal(depth))
		Expect(subject.ChildCount(root)).To(Equal(1))
		Expect(subject.ChildCount(last)).To(Equal(0))

		// cycles are still detected at depth
		Expect(subject.AppendChild(last, root)).To(MatchError(chunkfile.ErrInvalidArgument))

		data, err := chunkfile.Marshal(subject, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(chunkfile.FileHeaderSize + depth*chunkfile.NodeHeaderSize))

		f, err := chunkfile.NewForest(data)
		Expect(err).NotTo(HaveOccurred())
		var maxDepth int
		Expect(f.Walk(func(c chunkfile.Chunk, d int) error {
			if d > maxDepth {
				maxDepth = d
			}
			return nil
		})).To(Succeed())
		Expect(maxDepth).To(Equal(depth - 1))
	})

	It("should reject absent nodes", func() {
		a := makeNode(subject, 0x1111, seq(0, 4))

		Expect(subject.AppendSibling(chunkfile.NoNode, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendSibling(a, chunkfile.NoNode)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendChild(chunkfile.NoNode, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendChild(a, 7)).To(MatchError(chunkfile.ErrInvalidArgument))
	})

	It("should prevent shared nodes", func() {
		a := makeNode(subject, 0x1111, seq(0, 4))
		b := makeNode(subject, 0x2222, seq(0, 4))
		c := makeNode(subject, 0x3333, seq(0, 4))

		Expect(subject.AppendChild(a, c)).To(Succeed())
		Expect(subject.AppendChild(b, c)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendSibling(b, c)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.ChildCount(b)).To(Equal(0))
	})

	It("should prevent cycles", func() {
		a := makeNode(subject, 0x1111, seq(0, 4))
		b := makeNode(subject, 0x2222, seq(0, 4))
		c := makeNode(subject, 0x3333, seq(0, 4))

		Expect(subject.AppendSibling(a, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendChild(a, a)).To(MatchError(chunkfile.ErrInvalidArgument))

		Expect(subject.AppendChild(a, b)).To(Succeed())
		Expect(subject.AppendSibling(b, c)).To(Succeed())
		Expect(subject.AppendChild(c, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.AppendSibling(b, a)).To(MatchError(chunkfile.ErrInvalidArgument))
		Expect(subject.ChildCount(a)).To(Equal(2))
		Expect(subject.ChildCount(c)).To(Equal(0))
	})

	It("should walk", func() {
		t, head := seedTree(2, 2, 2)
		Expect(t.Len()).To(Equal(14))

		var tags []uint32
		var depths []int
		Expect(t.Walk(head, func(n chunkfile.NodeID, depth int) error {
			tags = append(tags, t.Tag(n))
			depths = append(depths, depth)
			return nil
		})).To(Succeed())
		Expect(tags).To(Equal([]uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}))
		Expect(depths).To(Equal([]int{0, 1, 2, 2, 1, 2, 2, 0, 1, 2, 2, 1, 2, 2}))

		errStop := errors.New("stop")
		var visited int
		Expect(t.Walk(head, func(chunkfile.NodeID, int) error {
			if visited++; visited == 3 {
				return errStop
			}
			return nil
		})).To(MatchError(errStop))
		Expect(visited).To(Equal(3))

		Expect(t.Walk(chunkfile.NoNode, nil)).To(Succeed())
	})

	It("should reset", func() {
		t, _ := seedTree(3, 1, 1)
		Expect(t.Len()).To(Equal(6))
		t.Reset()
		Expect(t.Len()).To(Equal(0))
	})
})

package chunkfile

import "fmt"

// NodeID references a node within a Tree.
type NodeID int32

// NoNode is the absent node reference.
const NoNode NodeID = -1

type node struct {
	tag        uint32
	childCount uint32
	payload    []byte

	firstChild  NodeID
	nextSibling NodeID
	owner       NodeID // chain predecessor, or parent of a first child
	parent      NodeID // parent of the chain the node belongs to
}

// Tree is an in-memory chunk forest under construction. Nodes are
// allocated in an arena and linked into sibling and child chains.
type Tree struct {
	nodes []node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return new(Tree)
}

// Len returns the number of allocated nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Reset drops all nodes. Previously returned IDs become invalid.
func (t *Tree) Reset() {
	for i := range t.nodes {
		t.nodes[i] = node{}
	}
	t.nodes = t.nodes[:0]
}

// Alloc allocates a node with a zero-filled payload of size bytes.
func (t *Tree) Alloc(size int) (NodeID, error) {
	if size < 0 {
		return NoNode, fmt.Errorf("%w: negative payload size %d", ErrInvalidArgument, size)
	}
	if int64(len(t.nodes)) >= 1<<31-1 {
		return NoNode, fmt.Errorf("%w: too many nodes", ErrOutOfMemory)
	}

	t.nodes = append(t.nodes, node{
		tag:         DefaultTag,
		payload:     make([]byte, size),
		firstChild:  NoNode,
		nextSibling: NoNode,
		owner:       NoNode,
		parent:      NoNode,
	})
	return NodeID(len(t.nodes) - 1), nil
}

// Make allocates a node and copies data into its payload.
func (t *Tree) Make(data []byte) (NodeID, error) {
	if data == nil {
		return NoNode, fmt.Errorf("%w: missing payload", ErrInvalidArgument)
	}

	n, err := t.Alloc(len(data))
	if err != nil {
		return NoNode, err
	}
	copy(t.nodes[n].payload, data)
	return n, nil
}

// AppendSibling links n after the last node of the chain starting at head.
// If head belongs to a child chain, the child count of its parent is
// incremented by one and n must not have siblings of its own.
func (t *Tree) AppendSibling(head, n NodeID) error {
	if err := t.validate(head); err != nil {
		return err
	}

	last := t.LastSibling(head)
	parent := t.nodes[last].parent
	if err := t.checkLink(last, n, parent != NoNode); err != nil {
		return err
	}

	t.nodes[last].nextSibling = n
	t.nodes[n].owner = last
	if parent != NoNode {
		t.nodes[n].parent = parent
		t.nodes[parent].childCount++
	}
	return nil
}

// AppendChild links n at the end of the child chain of parent and
// increments the child count of parent by one.
func (t *Tree) AppendChild(parent, n NodeID) error {
	if err := t.validate(parent); err != nil {
		return err
	}

	target := t.LastChild(parent)
	if target == NoNode {
		target = parent
	}
	if err := t.checkLink(target, n, true); err != nil {
		return err
	}

	if target == parent {
		t.nodes[parent].firstChild = n
	} else {
		t.nodes[target].nextSibling = n
	}
	t.nodes[n].owner = target
	t.nodes[n].parent = parent
	t.nodes[parent].childCount++
	return nil
}

// Tag returns the tag of n.
func (t *Tree) Tag(n NodeID) uint32 { return t.nodes[n].tag }

// SetTag sets the tag of n.
func (t *Tree) SetTag(n NodeID, tag uint32) { t.nodes[n].tag = tag }

// Payload returns the payload of n. The returned slice may be modified
// in place.
func (t *Tree) Payload(n NodeID) []byte { return t.nodes[n].payload }

// ChildCount returns the number of direct children of n.
func (t *Tree) ChildCount(n NodeID) int { return int(t.nodes[n].childCount) }

// FirstChild returns the first child of n or NoNode.
func (t *Tree) FirstChild(n NodeID) NodeID { return t.nodes[n].firstChild }

// NextSibling returns the next sibling of n or NoNode.
func (t *Tree) NextSibling(n NodeID) NodeID { return t.nodes[n].nextSibling }

// LastSibling returns the last node of the chain starting at n.
func (t *Tree) LastSibling(n NodeID) NodeID {
	for t.nodes[n].nextSibling != NoNode {
		n = t.nodes[n].nextSibling
	}
	return n
}

// LastChild returns the last child of n or NoNode.
func (t *Tree) LastChild(n NodeID) NodeID {
	if c := t.nodes[n].firstChild; c != NoNode {
		return t.LastSibling(c)
	}
	return NoNode
}

// Child returns the i-th direct child of n or NoNode.
func (t *Tree) Child(n NodeID, i int) NodeID {
	if i < 0 || i >= int(t.nodes[n].childCount) {
		return NoNode
	}

	c := t.nodes[n].firstChild
	for ; i > 0 && c != NoNode; i-- {
		c = t.nodes[c].nextSibling
	}
	return c
}

// Walk visits the forest starting at head depth-first, parents before
// children and children before the next sibling. It stops at the first
// error returned by fn.
func (t *Tree) Walk(head NodeID, fn func(n NodeID, depth int) error) error {
	if head == NoNode {
		return nil
	}
	if err := t.validate(head); err != nil {
		return err
	}
	return t.walk(head, 0, fn)
}

func (t *Tree) walk(n NodeID, depth int, fn func(NodeID, int) error) error {
	for ; n != NoNode; n = t.nodes[n].nextSibling {
		if err := fn(n, depth); err != nil {
			return err
		}
		if c := t.nodes[n].firstChild; c != NoNode {
			if err := t.walk(c, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tree) validate(n NodeID) error {
	if n < 0 || int(n) >= len(t.nodes) {
		return fmt.Errorf("%w: unknown node %d", ErrInvalidArgument, n)
	}
	return nil
}

// checkLink ensures n can be linked below target without sharing
// nodes between chains or introducing a cycle. Only single nodes may
// join a child chain.
func (t *Tree) checkLink(target, n NodeID, single bool) error {
	if err := t.validate(n); err != nil {
		return err
	}

	nd := &t.nodes[n]
	if nd.owner != NoNode {
		return fmt.Errorf("%w: node %d is already linked", ErrInvalidArgument, n)
	}
	if single && nd.nextSibling != NoNode {
		return fmt.Errorf("%w: node %d has siblings and cannot join a child chain", ErrInvalidArgument, n)
	}

	// a lone node can only form a cycle with itself
	if nd.firstChild == NoNode && nd.nextSibling == NoNode {
		if target == n {
			return fmt.Errorf("%w: linking node %d would create a cycle", ErrInvalidArgument, n)
		}
		return nil
	}

	for x := target; x != NoNode; x = t.nodes[x].owner {
		if x == n {
			return fmt.Errorf("%w: linking node %d would create a cycle", ErrInvalidArgument, n)
		}
	}
	return nil
}

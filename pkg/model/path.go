package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RootID is the path id of the tree root.
const RootID = "0"

// PathID encodes the child indices from the root to a node as a stable node
// identifier: the root is "0", its second child "0.1", and so on.
func PathID(path []int) string {
	var b strings.Builder
	b.WriteString(RootID)
	for _, i := range path {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// ParsePathID is the inverse of PathID.
func ParsePathID(id string) ([]int, error) {
	parts := strings.Split(id, ".")
	if parts[0] != RootID {
		return nil, fmt.Errorf("path id %q: must start at root %q", id, RootID)
	}

	path := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		i, err := strconv.Atoi(p)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("path id %q: invalid index %q", id, p)
		}
		path = append(path, i)
	}
	return path, nil
}

// At returns the node reached by following path from c.
func (c *Component) At(path []int) (*Component, bool) {
	node := c
	for _, i := range path {
		if node == nil || i >= len(node.Children) {
			return nil, false
		}
		node = node.Children[i]
	}
	return node, node != nil
}

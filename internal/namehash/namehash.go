// Package namehash derives Name Nodes from dotted names using the recursive
// keccak256 construction of EIP-137.
package namehash

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	labelSeparatorConstant = "."
	topLevelLabelConstant  = "eth"
	reverseLabelConstant   = "reverse"
	addrLabelConstant      = "addr"
	testLabelConstant      = "test"
	xyzLabelConstant       = "xyz"
)

// Node identifies a name in the hierarchy.
type Node = common.Hash

// Root is the distinguished node of the whole hierarchy.
var Root = Node{}

// Well-known labels and nodes used by the migration phases.
var (
	EthLabel     = LabelHash(topLevelLabelConstant)
	EthNode      = Hash(topLevelLabelConstant)
	ReverseLabel = LabelHash(reverseLabelConstant)
	ReverseNode  = Hash(reverseLabelConstant)
	AddrLabel    = LabelHash(addrLabelConstant)
	TestLabel    = LabelHash(testLabelConstant)
	TestNode     = Hash(testLabelConstant)
	XyzLabel     = LabelHash(xyzLabelConstant)
	XyzNode      = Hash(xyzLabelConstant)
)

// LabelHash returns keccak256 of a single label.
func LabelHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(normalizeLabel(label)))
}

// Subnode derives the node of labelHash beneath parent.
func Subnode(parent Node, labelHash common.Hash) Node {
	return crypto.Keccak256Hash(parent.Bytes(), labelHash.Bytes())
}

// Hash derives the node of a dotted name. The empty name is the root node.
func Hash(name string) Node {
	trimmedName := strings.Trim(strings.TrimSpace(name), labelSeparatorConstant)
	if len(trimmedName) == 0 {
		return Root
	}

	labels := strings.Split(trimmedName, labelSeparatorConstant)
	node := Root
	for labelIndex := len(labels) - 1; labelIndex >= 0; labelIndex-- {
		node = Subnode(node, LabelHash(labels[labelIndex]))
	}
	return node
}

// Name derives the node of label beneath the eth top-level name.
func Name(label string) Node {
	return Subnode(EthNode, LabelHash(label))
}

// Labels are lower-cased only; full UTS-46 processing is left to callers that accept
// user-supplied unicode names.
func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

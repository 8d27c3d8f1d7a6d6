package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024
)

// NodeFromPart converts a Gmail message part tree into AttachmentNodes.
func NodeFromPart(part *gmail.MessagePart) *AttachmentNode {
	if part == nil {
		return nil
	}

	node := &AttachmentNode{
		Filename: part.Filename,
		MimeType: part.MimeType,
	}
	if part.Body != nil {
		node.AttachmentRef = part.Body.AttachmentId
		node.Size = part.Body.Size
	}
	for _, sub := range part.Parts {
		if child := NodeFromPart(sub); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// FlattenAttachments walks the tree depth-first, pre-order, keeping sibling
// order, and returns every leaf attachment. The children of a leaf are not
// visited.
func FlattenAttachments(root *AttachmentNode) []Leaf {
	var leaves []Leaf
	walkNodes(root, func(n *AttachmentNode) bool {
		if n.IsLeaf() {
			leaves = append(leaves, Leaf{
				Filename:      n.Filename,
				MimeType:      n.MimeType,
				AttachmentRef: n.AttachmentRef,
				Size:          n.Size,
			})
			return false
		}
		return true
	})
	return leaves
}

// walkNodes visits n and, while fn returns true, its descendants.
func walkNodes(n *AttachmentNode, fn func(*AttachmentNode) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		walkNodes(child, fn)
	}
}

// decodeBody decodes Gmail's base64url body data, tolerating missing padding
// and standard-alphabet input.
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return decoded, nil
}

// SanitizeFilename sanitizes a filename to prevent path traversal attacks
func SanitizeFilename(filename string) string {
	// Remove path separators and other potentially dangerous characters
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	return filename
}

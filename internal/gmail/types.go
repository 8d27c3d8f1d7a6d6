package gmail

// AttachmentNode is one node of a message's MIME part tree.
//
// A node is a leaf attachment when it has both a Filename and an
// AttachmentRef. Any other node is a container and only its Children matter.
type AttachmentNode struct {
	Filename      string
	MimeType      string
	AttachmentRef string
	Size          int64
	Children      []*AttachmentNode
}

// IsLeaf reports whether n is a fetchable attachment.
func (n *AttachmentNode) IsLeaf() bool {
	return n != nil && n.Filename != "" && n.AttachmentRef != ""
}

// Leaf is a leaf attachment found in a message, in discovery order.
type Leaf struct {
	MessageID     string
	Filename      string
	MimeType      string
	AttachmentRef string
	Size          int64
}

// Message is the subset of a Gmail message the importer uses.
type Message struct {
	ID      string
	Subject string
	Root    *AttachmentNode
}

// Leaves returns the message's leaf attachments in discovery order.
func (m *Message) Leaves() []Leaf {
	leaves := FlattenAttachments(m.Root)
	for i := range leaves {
		leaves[i].MessageID = m.ID
	}
	return leaves
}

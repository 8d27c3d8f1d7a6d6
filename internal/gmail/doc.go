// Package gmail provides a narrow client for the Gmail API covering what the
// attachment importer needs: searching messages, fetching a message's MIME
// part tree and downloading attachment bodies.
//
// The part tree is converted into AttachmentNode values so the importer can
// work on a provider-neutral structure. FlattenAttachments turns a tree into
// the ordered list of leaf attachments:
//
//	client, err := gmail.NewClient(ctx, httpClient, nil)
//	if err != nil {
//	    return err
//	}
//	ids, err := client.ListMessages(ctx, "has:attachment newer_than:30d", 25)
//	...
//	msg, err := client.GetMessage(ctx, ids[0])
//	for _, leaf := range gmail.FlattenAttachments(msg.Root) {
//	    data, err := client.GetAttachment(ctx, msg.ID, leaf.AttachmentRef)
//	    ...
//	}
//
// Authentication is the caller's concern: NewClient takes an HTTP client that
// already carries the user's OAuth token (see the google package).
package gmail

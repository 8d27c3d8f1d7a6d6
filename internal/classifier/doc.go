// Package classifier summarizes and classifies uploaded documents.
//
// A Classifier takes the raw bytes of an image or PDF together with its
// filename and asks a generative model for a summary, the owning department,
// a priority and a recommended next step. Text PDFs are submitted as
// extracted text; scanned PDFs are rasterized (first page only) and submitted
// as images.
//
// Classify never returns an error. Failures are reported through
// Result.ErrorMessage and the caller must treat such a result as failed as a
// whole:
//
//	c := classifier.New(model)
//	res := c.Classify(ctx, classifier.NewRequest(data, "invoice.pdf", ""))
//	if res.Failed() {
//	    // show "needs manual review"
//	}
package classifier

// Package apperr defines the error taxonomy shared by the classifier, the
// importer and the HTTP layer.
//
// Errors are wrapped in *Error values carrying a Kind so that callers can
// decide how to surface them without string matching:
//
//	if apperr.KindOf(err) == apperr.AuthError {
//	    // ask the user to re-authorize
//	}
package apperr

// Package document abstracts the external document service the certificate
// pipeline drives: copy a template, merge placeholder fields, export a PDF.
package document

import "context"

// Service is the template/merge/export interface. Merging is an exact-text
// replace of literal placeholder markers, not a templating language; the
// interface stays minimal on purpose.
type Service interface {
	// CopyTemplate copies the named template into a working document and
	// returns a reference to the copy. Copying to an existing working name
	// overwrites it, which is what makes a retried pipeline run safe.
	CopyTemplate(ctx context.Context, templateName, workingName string) (string, error)

	// MergeFields replaces each placeholder key with its value throughout
	// the working document.
	MergeFields(ctx context.Context, docRef string, fields map[string]string) error

	// ExportPDF renders the working document to PDF bytes.
	ExportPDF(ctx context.Context, docRef string) ([]byte, error)
}

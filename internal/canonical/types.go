// Package canonical maps raw extractor output into typed, per-document-type
// canonical records. Each document type has a fixed field set; fields outside
// that set never appear in a canonical Document.
package canonical

import (
	"encoding/json"
	"errors"
	"slices"
)

// ErrUnknownType indicates a document type outside the closed set.
var ErrUnknownType = errors.New("unknown document type")

// DocumentType identifies the kind of trade document.
type DocumentType string

// Document types recognized by the mapper.
const (
	BillOfLading                DocumentType = "bill_of_lading"
	CommercialInvoice           DocumentType = "commercial_invoice"
	PackingList                 DocumentType = "packing_list"
	CertificateOfOrigin         DocumentType = "certificate_of_origin"
	VeterinaryHealthCertificate DocumentType = "veterinary_health_certificate"
	EUTracesCertificate         DocumentType = "eu_traces_certificate"
	FumigationCertificate       DocumentType = "fumigation_certificate"
	PhytosanitaryCertificate    DocumentType = "phytosanitary_certificate"
	ExportDeclaration           DocumentType = "export_declaration"
	Other                       DocumentType = "other"
)

var documentTypes = []DocumentType{
	BillOfLading,
	CommercialInvoice,
	PackingList,
	CertificateOfOrigin,
	VeterinaryHealthCertificate,
	EUTracesCertificate,
	FumigationCertificate,
	PhytosanitaryCertificate,
	ExportDeclaration,
	Other,
}

// DocumentTypes returns the closed set of document types.
func DocumentTypes() []DocumentType {
	return slices.Clone(documentTypes)
}

// Valid reports whether t belongs to the closed set.
func (t DocumentType) Valid() bool {
	return slices.Contains(documentTypes, t)
}

// ParseDocumentType validates a string as a known document type.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", ErrUnknownType
	}
	return t, nil
}

// UnmarshalJSON validates that the decoded string is a known document type.
func (t *DocumentType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseDocumentType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

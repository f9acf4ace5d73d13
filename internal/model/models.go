// Package model defines shared data structures for the ingest service.
package model

// RemotePath is one entry discovered on the FTP tree. Produced by the
// listing walk and consumed immediately by the pipeline.
type RemotePath struct {
	Path  string // absolute remote path
	Name  string // base name of the entry
	IsDir bool
}

// Notice is one procurement notice parsed from a single XML document.
// Every field except the code set may be empty: absence of a field in the
// source XML never aborts parsing.
type Notice struct {
	PurchaseNumber     string   `json:"purchaseNumber"`
	PurchaseURL        string   `json:"purchaseUrl"`
	ETPName            string   `json:"etpName"`
	StartDate          string   `json:"startDate"`
	EndDate            string   `json:"endDate"`
	OKPD2Code          string   `json:"okpd2Code"` // code from the contract-conditions section
	OKPD2Name          string   `json:"okpd2Name"`
	PurchaseObjectInfo string   `json:"purchaseObjectInfo"`
	CustomerShortName  string   `json:"customerShortName"`
	CustomerINN        string   `json:"customerInn"`
	CustomerKPP        string   `json:"customerKpp"`
	CustomerAddress    string   `json:"customerAddress"`
	AllCodes           []string `json:"allCodes"`           // every OKPD2 code found anywhere in the document
	DocumentationLinks []string `json:"documentationLinks"` // every url element text, order and duplicates preserved
}

// AttachmentBatch pairs a persisted notice with its documentation links,
// for the downstream attachment-download stage.
type AttachmentBatch struct {
	NoticeID int64
	Links    []string
}

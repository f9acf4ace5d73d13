// Package parser extracts structured contract fields from procurement
// notice XML and decides acceptance against the OKPD2 allow-set.
package parser

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/model"
)

// ParseError reports malformed XML. The source file is deleted by the
// caller: a file that does not parse today will not parse on retry.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse notice: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Parser turns one XML notice document into a model.Notice.
type Parser struct {
	log zerolog.Logger
}

// NewParser constructs a Parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse extracts the notice fields from xmlBytes.
//
// Primary strategy: strip all namespace declarations and tag prefixes,
// then query bare tag names. Fallback: parse the document as-is and rely
// on local-name matching, which ignores whatever prefix a revision bound.
// Every field except the code set is optional — a missing element leaves
// the field empty and never aborts the record.
func (p *Parser) Parse(xmlBytes []byte) (*model.Notice, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(StripNamespaces(xmlBytes)); err != nil || doc.Root() == nil {
		doc = etree.NewDocument()
		if err2 := doc.ReadFromBytes(xmlBytes); err2 != nil {
			return nil, &ParseError{Err: err2}
		}
		if doc.Root() == nil {
			return nil, &ParseError{Err: fmt.Errorf("document has no root element")}
		}
	}

	n := &model.Notice{
		PurchaseNumber:     firstText(doc, "//purchaseNumber"),
		PurchaseURL:        firstText(doc, "//commonInfo/href", "//href"),
		ETPName:            firstText(doc, "//ETP/name", "//etp/name"),
		StartDate:          firstText(doc, "//collectingInfo/startDate", "//collecting/startDate"),
		EndDate:            firstText(doc, "//collectingInfo/endDate", "//collecting/endDate"),
		OKPD2Name:          firstText(doc, "//contractConditionsInfo//OKPD2/name", "//OKPD2/name"),
		PurchaseObjectInfo: firstText(doc, "//purchaseObjectInfo"),
		CustomerShortName:  firstText(doc, "//responsibleOrgInfo/shortName", "//customer/shortName", "//shortName"),
		CustomerINN:        firstText(doc, "//responsibleOrgInfo/INN", "//customer/INN", "//INN"),
		CustomerKPP:        firstText(doc, "//responsibleOrgInfo/KPP", "//customer/KPP", "//KPP"),
		CustomerAddress:    firstText(doc, "//responsibleOrgInfo/factAddress", "//factAddress"),
		AllCodes:           collectCodes(doc),
		DocumentationLinks: allTexts(doc, "//url"),
	}

	// The primary code comes from the contract-conditions section; files
	// using only the plural purchase-object blocks fall back to the first
	// code seen anywhere.
	n.OKPD2Code = firstText(doc, "//contractConditionsInfo//OKPD2/code")
	if n.OKPD2Code == "" && len(n.AllCodes) > 0 {
		n.OKPD2Code = n.AllCodes[0]
	}

	p.log.Debug().
		Str("purchase_number", n.PurchaseNumber).
		Int("codes", len(n.AllCodes)).
		Int("links", len(n.DocumentationLinks)).
		Msg("notice parsed")

	return n, nil
}

// collectCodes gathers every classification code in the document, in
// document order, deduplicated. Both the OKPD2 block form and the flat
// OKPDCode element form occur in the corpus.
func collectCodes(doc *etree.Document) []string {
	var codes []string
	seen := make(map[string]struct{})

	add := func(raw string) {
		code := strings.TrimSpace(raw)
		if code == "" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for _, el := range doc.FindElements("//OKPD2/code") {
		add(el.Text())
	}
	for _, el := range doc.FindElements("//OKPDCode") {
		add(el.Text())
	}

	return codes
}

func firstText(doc *etree.Document, paths ...string) string {
	for _, path := range paths {
		if el := doc.FindElement(path); el != nil {
			if s := strings.TrimSpace(el.Text()); s != "" {
				return s
			}
		}
	}
	return ""
}

func allTexts(doc *etree.Document, path string) []string {
	var out []string
	for _, el := range doc.FindElements(path) {
		if s := strings.TrimSpace(el.Text()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

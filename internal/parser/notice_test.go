package parser_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/parser"
)

// noticeXML renders the same logical notice with a configurable namespace
// prefix. prefix "" yields unqualified tags with no declarations.
func noticeXML(prefix string) []byte {
	open := func(tag string) string {
		if prefix == "" {
			return tag
		}
		return prefix + ":" + tag
	}
	decl := ""
	if prefix != "" {
		decl = fmt.Sprintf(` xmlns:%s="http://zakupki.gov.ru/oos/export/1"`, prefix)
	}

	body := ""
	tags := [][2]string{}
	_ = tags
	body = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<%[1]s%[2]s>
  <%[3]s>0173200001424000111</%[3]s>
  <%[4]s>https://zakupki.gov.ru/epz/order/notice/ea44/view/common-info.html?regNumber=0173200001424000111</%[4]s>
  <%[5]s><%[6]s>РТС-тендер</%[6]s></%[5]s>
  <%[7]s>
    <%[8]s>2024-06-15</%[8]s>
    <%[9]s>2024-06-30</%[9]s>
  </%[7]s>
  <%[10]s>
    <%[11]s>Поставка светильников</%[11]s>
    <%[12]s>
      <%[13]s>42.11.10.120</%[13]s>
      <%[14]s>Дороги автомобильные</%[14]s>
    </%[12]s>
  </%[10]s>
  <%[15]s>
    <%[16]s>ГКУ Дирекция</%[16]s>
    <%[17]s>7701234567</%[17]s>
    <%[18]s>770101001</%[18]s>
    <%[19]s>г. Москва, ул. Тверская, 1</%[19]s>
  </%[15]s>
  <%[20]s>
    <%[21]s>https://zakupki.gov.ru/file/1</%[21]s>
    <%[21]s>https://zakupki.gov.ru/file/2</%[21]s>
    <%[21]s>https://zakupki.gov.ru/file/1</%[21]s>
  </%[20]s>
</%[1]s>`,
		open("export"), decl,
		open("purchaseNumber"),
		open("href"),
		open("ETP"), open("name"),
		open("collectingInfo"),
		open("startDate"),
		open("endDate"),
		open("contractConditionsInfo"),
		open("purchaseObjectInfo"),
		open("OKPD2"),
		open("code"),
		open("name"),
		open("responsibleOrgInfo"),
		open("shortName"),
		open("INN"),
		open("KPP"),
		open("factAddress"),
		open("attachments"),
		open("url"),
	)
	return []byte(body)
}

// ── Parse — field extraction ───────────────────────────────────────────────

func TestParse_ExtractsAllFields(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	n, err := p.Parse(noticeXML("ns5"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if n.PurchaseNumber != "0173200001424000111" {
		t.Errorf("PurchaseNumber = %q", n.PurchaseNumber)
	}
	if n.ETPName != "РТС-тендер" {
		t.Errorf("ETPName = %q", n.ETPName)
	}
	if n.StartDate != "2024-06-15" || n.EndDate != "2024-06-30" {
		t.Errorf("collection window = %q..%q", n.StartDate, n.EndDate)
	}
	if n.OKPD2Code != "42.11.10.120" {
		t.Errorf("OKPD2Code = %q, want 42.11.10.120", n.OKPD2Code)
	}
	if n.OKPD2Name != "Дороги автомобильные" {
		t.Errorf("OKPD2Name = %q", n.OKPD2Name)
	}
	if n.PurchaseObjectInfo != "Поставка светильников" {
		t.Errorf("PurchaseObjectInfo = %q", n.PurchaseObjectInfo)
	}
	if n.CustomerINN != "7701234567" || n.CustomerKPP != "770101001" {
		t.Errorf("customer identity = INN %q KPP %q", n.CustomerINN, n.CustomerKPP)
	}
	if n.CustomerShortName != "ГКУ Дирекция" {
		t.Errorf("CustomerShortName = %q", n.CustomerShortName)
	}
	if n.CustomerAddress != "г. Москва, ул. Тверская, 1" {
		t.Errorf("CustomerAddress = %q", n.CustomerAddress)
	}

	wantLinks := []string{
		"https://zakupki.gov.ru/file/1",
		"https://zakupki.gov.ru/file/2",
		"https://zakupki.gov.ru/file/1", // duplicates preserved, order preserved
	}
	if !reflect.DeepEqual(n.DocumentationLinks, wantLinks) {
		t.Errorf("DocumentationLinks = %v, want %v", n.DocumentationLinks, wantLinks)
	}
}

// ── Parse — namespace tolerance ────────────────────────────────────────────

func TestParse_NamespaceVariantsProduceIdenticalRecord(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	base, err := p.Parse(noticeXML(""))
	if err != nil {
		t.Fatalf("Parse(unqualified) returned error: %v", err)
	}

	for _, prefix := range []string{"ns2", "ns5", "ns14", "oos"} {
		n, err := p.Parse(noticeXML(prefix))
		if err != nil {
			t.Fatalf("Parse(prefix %s) returned error: %v", prefix, err)
		}
		if !reflect.DeepEqual(n, base) {
			t.Errorf("prefix %s produced a different record:\n got %+v\nwant %+v", prefix, n, base)
		}
	}
}

func TestParse_DefaultNamespaceDeclaration(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	xml := []byte(`<export xmlns="http://zakupki.gov.ru/oos/export/1">
  <purchaseNumber>123</purchaseNumber>
  <OKPD2><code>99.99.99</code></OKPD2>
</export>`)

	n, err := p.Parse(xml)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if n.PurchaseNumber != "123" {
		t.Errorf("PurchaseNumber = %q, want 123", n.PurchaseNumber)
	}
	if len(n.AllCodes) != 1 || n.AllCodes[0] != "99.99.99" {
		t.Errorf("AllCodes = %v", n.AllCodes)
	}
}

// ── Parse — tolerance of unexpected schema ─────────────────────────────────

func TestParse_MissingFieldsYieldEmptyRecord(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	n, err := p.Parse([]byte(`<fcsContractSign><signDate>2024-01-01</signDate></fcsContractSign>`))
	if err != nil {
		t.Fatalf("well-formed but unexpected XML must not fail: %v", err)
	}
	if n.PurchaseNumber != "" || n.OKPD2Code != "" || len(n.AllCodes) != 0 {
		t.Errorf("expected empty record, got %+v", n)
	}
}

func TestParse_FlatOKPDCodeForm(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	n, err := p.Parse([]byte(`<notice><purchaseNumber>42</purchaseNumber><OKPDCode> 42.11.10.120 </OKPDCode></notice>`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if n.OKPD2Code != "42.11.10.120" {
		t.Errorf("OKPD2Code = %q, want trimmed flat-form code", n.OKPD2Code)
	}
}

// ── Parse — malformed input ────────────────────────────────────────────────

func TestParse_MalformedXML(t *testing.T) {
	p := parser.NewParser(zerolog.Nop())

	for _, bad := range [][]byte{
		[]byte("not xml at all"),
		[]byte("<export><purchaseNumber>1</export>"),
		{},
	} {
		_, err := p.Parse(bad)
		var parseErr *parser.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Parse(%q) error = %v, want *parser.ParseError", bad, err)
		}
	}
}

package parser_test

import (
	"testing"

	"zakupki/ingest-service/internal/parser"
)

func TestStripNamespaces(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "prefixed declaration and tags",
			in:   `<ns2:export xmlns:ns2="http://zakupki.gov.ru/oos/export/1"><ns2:purchaseNumber>123</ns2:purchaseNumber></ns2:export>`,
			want: `<export><purchaseNumber>123</purchaseNumber></export>`,
		},
		{
			name: "default namespace declaration",
			in:   `<export xmlns="http://zakupki.gov.ru/oos/export/1"><href>x</href></export>`,
			want: `<export><href>x</href></export>`,
		},
		{
			name: "single-quoted declaration",
			in:   `<ns14:root xmlns:ns14='http://zakupki.gov.ru/oos/types/1'/>`,
			want: `<root/>`,
		},
		{
			name: "multiple declarations on one element",
			in:   `<ns2:export xmlns:ns2="http://a" xmlns:ns3="http://b" xmlns="http://c"><ns3:name>x</ns3:name></ns2:export>`,
			want: `<export><name>x</name></export>`,
		},
		{
			name: "element text with colons is untouched",
			in:   `<ns2:endDate>2024-06-15T10:30:00</ns2:endDate>`,
			want: `<endDate>2024-06-15T10:30:00</endDate>`,
		},
		{
			name: "attribute values are untouched",
			in:   `<ns2:file href="https://zakupki.gov.ru/44fz/file?uid=1"/>`,
			want: `<file href="https://zakupki.gov.ru/44fz/file?uid=1"/>`,
		},
		{
			name: "unqualified document passes through",
			in:   `<export><purchaseNumber>123</purchaseNumber></export>`,
			want: `<export><purchaseNumber>123</purchaseNumber></export>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(parser.StripNamespaces([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("StripNamespaces(%q)\n got %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}

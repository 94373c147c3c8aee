package search

import (
	"reflect"
	"testing"
)

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sunset", "sunset"},
		{"  Red  Dress  ", "red dress"},
		{"ЁЛКА", "елка"},
		{"новогодняя ёлка", "новогодняя елка"},
		{"tab\there", "tab here"},
		{"", ""},
		{"   ", ""},
		{"already normal", "already normal"},
	}
	for _, tt := range tests {
		if got := NormalizeKeyword(tt.in); got != tt.want {
			t.Errorf("NormalizeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSpecimenQuery(t *testing.T) {
	q := Parse(`"red dress" wedding OR studio -outdoor`)

	want := ParsedQuery{
		Groups: []Group{
			{{Value: "red dress", Phrase: true}},
			{{Value: "wedding"}, {Value: "studio"}},
		},
		Not: []Term{{Value: "outdoor"}},
	}
	if !reflect.DeepEqual(q, want) {
		t.Fatalf("parse mismatch:\n got %+v\nwant %+v", q, want)
	}

	// Behavior against a fake corpus.
	matches := func(keywords ...string) bool { return q.Match(keywords) }
	if !matches("red dress", "wedding") {
		t.Error("doc with phrase and one disjunct should match")
	}
	if !matches("red dress", "studio", "indoor") {
		t.Error("doc with phrase and the other disjunct should match")
	}
	if matches("red dress", "wedding", "outdoor") {
		t.Error("doc with the negated keyword must not match")
	}
	if matches("wedding", "studio") {
		t.Error("doc missing the phrase must not match regardless of the rest")
	}
}

func TestParseTokenClassification(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ParsedQuery
	}{
		{
			name: "bare terms conjoin",
			raw:  "beach sunset",
			want: ParsedQuery{Groups: []Group{
				{{Value: "beach"}},
				{{Value: "sunset"}},
			}},
		},
		{
			name: "AND is a no-op",
			raw:  "beach AND sunset",
			want: ParsedQuery{Groups: []Group{
				{{Value: "beach"}},
				{{Value: "sunset"}},
			}},
		},
		{
			name: "operators are case-insensitive",
			raw:  "beach and sunset or dawn",
			want: ParsedQuery{Groups: []Group{
				{{Value: "beach"}},
				{{Value: "sunset"}, {Value: "dawn"}},
			}},
		},
		{
			name: "prefix wildcard",
			raw:  "wed*",
			want: ParsedQuery{Groups: []Group{
				{{Value: "wed", Prefix: true}},
			}},
		},
		{
			name: "lone star is a plain term",
			raw:  "*",
			want: ParsedQuery{Groups: []Group{
				{{Value: "*"}},
			}},
		},
		{
			name: "negated term",
			raw:  "-outdoor beach",
			want: ParsedQuery{
				Groups: []Group{{{Value: "beach"}}},
				Not:    []Term{{Value: "outdoor"}},
			},
		},
		{
			name: "negated phrase",
			raw:  `-"studio shot" beach`,
			want: ParsedQuery{
				Groups: []Group{{{Value: "beach"}}},
				Not:    []Term{{Value: "studio shot", Phrase: true}},
			},
		},
		{
			name: "OR chain grows one group greedily",
			raw:  "a OR b OR c d",
			want: ParsedQuery{Groups: []Group{
				{{Value: "a"}, {Value: "b"}, {Value: "c"}},
				{{Value: "d"}},
			}},
		},
		{
			name: "OR after negated term is dropped",
			raw:  "-outdoor OR studio",
			want: ParsedQuery{
				Groups: []Group{{{Value: "studio"}}},
				Not:    []Term{{Value: "outdoor"}},
			},
		},
		{
			name: "OR before negated term is dropped",
			raw:  "studio OR -outdoor wedding",
			want: ParsedQuery{
				Groups: []Group{{{Value: "studio"}}, {{Value: "wedding"}}},
				Not:    []Term{{Value: "outdoor"}},
			},
		},
		{
			name: "leading OR is ignored",
			raw:  "OR beach",
			want: ParsedQuery{Groups: []Group{{{Value: "beach"}}}},
		},
		{
			name: "unmatched quote degrades to a literal",
			raw:  `beach "sunset`,
			want: ParsedQuery{Groups: []Group{
				{{Value: "beach"}},
				{{Value: `"sunset`}},
			}},
		},
		{
			name: "terms are case folded",
			raw:  "Beach SUNSET",
			want: ParsedQuery{Groups: []Group{
				{{Value: "beach"}},
				{{Value: "sunset"}},
			}},
		},
		{
			name: "duplicate disjuncts collapse",
			raw:  "beach OR Beach",
			want: ParsedQuery{Groups: []Group{{{Value: "beach"}}}},
		},
		{
			name: "negated and/or are terms",
			raw:  "-or beach",
			want: ParsedQuery{
				Groups: []Group{{{Value: "beach"}}},
				Not:    []Term{{Value: "or"}},
			},
		},
		{
			name: "phrase with prefix star",
			raw:  `"red dr"*`,
			want: ParsedQuery{Groups: []Group{
				{{Value: "red dr", Phrase: true, Prefix: true}},
			}},
		},
		{
			name: "empty input",
			raw:  "",
			want: ParsedQuery{},
		},
		{
			name: "whitespace only",
			raw:  "  \t  ",
			want: ParsedQuery{},
		},
		{
			name: "empty phrase vanishes",
			raw:  `"" beach`,
			want: ParsedQuery{Groups: []Group{{{Value: "beach"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q):\n got %+v\nwant %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		`"""`, `-`, `--`, `-"`, `*`, `**`, `-*`, `OR OR OR`, `AND`,
		`"unterminated -neg or`, "\x00", `a"b"c`,
	}
	for _, in := range inputs {
		// A total function: any input yields some valid query.
		_ = Parse(in)
	}
}

func TestTermMatching(t *testing.T) {
	tests := []struct {
		term    Term
		keyword string
		want    bool
	}{
		{Term{Value: "beach"}, "beach", true},
		{Term{Value: "beach"}, "beaches", false},
		{Term{Value: "beach", Prefix: true}, "beaches", true},
		{Term{Value: "beach", Prefix: true}, "bea", false},
		{Term{Value: "red dress", Phrase: true}, "red dress", true},
		{Term{Value: "red dress", Phrase: true}, "red dresses", false},
		{Term{Value: "red dress", Phrase: true}, "long red dress", true},
		{Term{Value: "red dress", Phrase: true}, "red dress gown", true},
		{Term{Value: "red dress", Phrase: true}, "dark red dressing", false},
		// Containment is for phrases only; a plain term stays exact.
		{Term{Value: "red"}, "red dress", false},
		{Term{Value: "red dr", Phrase: true, Prefix: true}, "red dress", true},
	}
	for _, tt := range tests {
		if got := tt.term.Matches(tt.keyword); got != tt.want {
			t.Errorf("%+v.Matches(%q) = %v, want %v", tt.term, tt.keyword, got, tt.want)
		}
	}
}

func TestTermsDeduplicates(t *testing.T) {
	q := Parse("beach OR sunset beach wed*")
	terms := q.Terms()
	want := []Term{
		{Value: "beach"},
		{Value: "sunset"},
		{Value: "wed", Prefix: true},
	}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Terms() = %+v, want %+v", terms, want)
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"red dress" wedding OR studio -outdoor`, `"red dress" AND ("wedding" OR "studio")`},
		{"beach", `"beach"`},
		{"wed*", `"wed"*`},
		{"-outdoor", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Parse(tt.raw).FTSQuery(); got != tt.want {
			t.Errorf("FTSQuery(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

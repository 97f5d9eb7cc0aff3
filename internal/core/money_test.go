package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"150", 15000, true},
		{"0.5", 50, true},
		{"12.345", 1235, true}, // half rounds up
		{"12.346", 1235, true}, // rounds up
		{"", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d expected ok, got %v", i, err)
			}
			if got != tc.want {
				t.Fatalf("case %d expected %d, got %d", i, tc.want, got)
			}
		} else if err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestFormatCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 50, 99, 100, 1234, 15000, 999999} {
		s := FormatCents(cents)
		back, err := ParseDecimalToCents(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if back != cents {
			t.Fatalf("round trip %d -> %q -> %d", cents, s, back)
		}
	}
}

func TestWholeUnits(t *testing.T) {
	cases := []struct {
		cents int64
		want  int64
	}{
		{15000, 150},
		{15049, 150},
		{15050, 151},
		{49, 0},
		{50, 1},
	}
	for i, tc := range cases {
		if got := (Money{Cents: tc.cents}).WholeUnits(); got != tc.want {
			t.Fatalf("case %d expected %d, got %d", i, tc.want, got)
		}
	}
}

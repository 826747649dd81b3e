package util

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Springfield High", "springfield-high"},
		{"5th Grade", "5th-grade"},
		{"  St. Mary's  School ", "st-mary-s-school"},
		{"UKG", "ukg"},
		{"---", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package reports

import "testing"

func TestFormatAmountIndianGrouping(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"1500", "1,500.00"},
		{"123456", "1,23,456.00"},
		{"12345678.5", "1,23,45,678.50"},
	}
	for _, tc := range cases {
		if got := FormatAmount(dec(tc.in)); got != tc.want {
			t.Fatalf("FormatAmount(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

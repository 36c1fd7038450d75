package reference

import "testing"

func TestPaper_Year(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2021-04-01", 2021},
		{"1999", 1999},
		{"", 0},
		{"20", 0},
		{"abcd-01-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := (Paper{Date: tt.date}).Year(); got != tt.want {
				t.Errorf("Year() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSortByDateDesc(t *testing.T) {
	papers := []Paper{
		{ScopusID: 1, Date: "2019-01-01"},
		{ScopusID: 2, Date: "2021-01-01"},
		{ScopusID: 3, Date: "2019-01-01"},
		{ScopusID: 4, Date: "2020-06-30"},
	}
	SortByDateDesc(papers)

	want := []int64{2, 4, 1, 3}
	for i, id := range want {
		if papers[i].ScopusID != id {
			t.Fatalf("order = %v, want %v", ids(papers), want)
		}
	}
}

func TestAuthor_CanonicalID(t *testing.T) {
	base := int64(10)
	if got := (Author{ScopusID: 20, BaseID: &base}).CanonicalID(); got != 10 {
		t.Errorf("alias CanonicalID() = %d, want 10", got)
	}
	if got := (Author{ScopusID: 10}).CanonicalID(); got != 10 {
		t.Errorf("canonical CanonicalID() = %d, want 10", got)
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("") != nil {
		t.Error("StringPtr(\"\") should be nil")
	}
	if got := Deref(StringPtr("x")); got != "x" {
		t.Errorf("Deref(StringPtr(x)) = %q", got)
	}
}

func ids(papers []Paper) []int64 {
	out := make([]int64, len(papers))
	for i, p := range papers {
		out[i] = p.ScopusID
	}
	return out
}

package pagination

import "testing"

func TestNormalize(t *testing.T) {
	p := Params{}.Normalize(10)
	if p.Page != 1 || p.PageSize != 10 {
		t.Fatalf("unexpected defaults %+v", p)
	}
	p = Params{Page: 3, PageSize: 1000}.Normalize(10)
	if p.PageSize != MaxPageSize {
		t.Fatalf("expected page size capped at %d, got %d", MaxPageSize, p.PageSize)
	}
	if p.Offset() != 2*MaxPageSize {
		t.Fatalf("unexpected offset %d", p.Offset())
	}
}

func TestNewPageTotals(t *testing.T) {
	page := NewPage([]int{1, 2}, Params{Page: 2, PageSize: 10}, 21)
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", page.TotalPages)
	}

	empty := NewPage[string](nil, Params{Page: 1, PageSize: 10}, 0)
	if empty.Items == nil || empty.TotalPages != 0 {
		t.Fatalf("expected empty non-nil page, got %+v", empty)
	}
}

func TestParsePage(t *testing.T) {
	cases := map[string]int{"": 1, "abc": 1, "-2": 1, "0": 1, " 4 ": 4}
	for in, want := range cases {
		if got := ParsePage(in); got != want {
			t.Fatalf("ParsePage(%q) = %d, want %d", in, got, want)
		}
	}
}

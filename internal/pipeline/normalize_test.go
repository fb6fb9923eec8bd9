package pipeline

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"bimschedule/internal"
)

func fp(v float64) *float64 { return &v }

func codes(records []internal.MaterialRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Code
	}
	return out
}

func TestNormalizeThreeCategories(t *testing.T) {
	tables := DefaultTables()
	in := []internal.Candidate{
		{FinishDescription: "Solid Oak Skirting"},
		{FinishDescription: "Porcelain Floor Tile"},
		{FinishDescription: "Matt Emulsion Paint"},
	}

	got := Normalize(in, tables)

	want := []string{"CT-01", "PT-01", "WD-01"}
	if fmt.Sprint(codes(got)) != fmt.Sprint(want) {
		t.Fatalf("codes=%v want %v", codes(got), want)
	}
	for i, r := range got {
		if r.PricePerSqm != (internal.PriceRange{Low: 50, Mid: 80, High: 110}) {
			t.Fatalf("%s prices=%+v", r.Code, r.PricePerSqm)
		}
		if r.SupplierContact != tables.Suppliers[i].Contact() {
			t.Fatalf("%s supplier=%q want %q", r.Code, r.SupplierContact, tables.Suppliers[i].Contact())
		}
	}
	if got[2].MaterialType != "Oak" || got[0].MaterialType != "Tile" || got[1].MaterialType != "Paint" {
		t.Fatalf("types=%q %q %q", got[0].MaterialType, got[1].MaterialType, got[2].MaterialType)
	}
}

func TestNormalizeGroupsWithinCategory(t *testing.T) {
	in := []internal.Candidate{
		{FinishDescription: "Oak flooring", Area: "Hall"},
		{FinishDescription: "Ceramic wall tile", Area: "Bathroom"},
		{FinishDescription: "Walnut veneer", Area: "Study"},
	}

	got := Normalize(in, DefaultTables())

	if fmt.Sprint(codes(got)) != "[CT-01 WD-01 WD-02]" {
		t.Fatalf("codes=%v", codes(got))
	}
	if got[1].Area != "Hall" || got[2].Area != "Study" {
		t.Fatalf("encounter order lost: %q %q", got[1].Area, got[2].Area)
	}
}

func TestNormalizeOverwritesCodeAndPrefix(t *testing.T) {
	in := []internal.Candidate{
		{FinishDescription: "Brushed steel handle", Code: "WD-07", MaterialType: "Stainless Steel"},
	}

	got := Normalize(in, DefaultTables())

	if got[0].Code != "MT-01" || got[0].CategoryPrefix != internal.PrefixMetal {
		t.Fatalf("got %s/%s", got[0].Code, got[0].CategoryPrefix)
	}
	if got[0].MaterialType != "Stainless Steel" {
		t.Fatalf("supplied type replaced: %q", got[0].MaterialType)
	}
}

func TestNormalizeDerivesBlankMaterialType(t *testing.T) {
	got := Normalize([]internal.Candidate{{FinishDescription: "Velvet upholstery", MaterialType: "   "}}, DefaultTables())
	if got[0].MaterialType != "Upholstery" || got[0].Code != "UN-01" {
		t.Fatalf("got %+v", got[0])
	}
}

func TestNormalizeEmpty(t *testing.T) {
	got := Normalize(nil, DefaultTables())
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestNormalizeSuppliersWrap(t *testing.T) {
	tables := DefaultTables()
	in := make([]internal.Candidate, 7)
	for i := range in {
		in[i] = internal.Candidate{FinishDescription: "oak"}
	}

	got := Normalize(in, tables)

	if got[5].SupplierContact != tables.Suppliers[0].Contact() || got[6].SupplierContact != tables.Suppliers[1].Contact() {
		t.Fatalf("wrap: %q %q", got[5].SupplierContact, got[6].SupplierContact)
	}
}

func TestNormalizeSubstitutedRoster(t *testing.T) {
	tables := DefaultTables()
	tables.Suppliers = []Supplier{{Name: "Acme", Email: "sales@acme.test", Phone: "01234"}}

	got := Normalize([]internal.Candidate{{FinishDescription: "oak"}, {FinishDescription: "tile"}}, tables)

	for _, r := range got {
		if r.SupplierContact != "Acme (sales@acme.test, 01234)" {
			t.Fatalf("supplier=%q", r.SupplierContact)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	tables := DefaultTables()
	cases := []struct {
		finish string
		prefix internal.CategoryPrefix
		typ    string
	}{
		{"Oak-effect porcelain tile", internal.PrefixWood, "Oak"},
		{"Mirror with steel frame", internal.PrefixMetal, "Glass"},
		{"Marble mosaic tile", internal.PrefixTile, "Marble"},
		{"Venetian PLASTER", internal.PrefixPaint, "Paint"},
		{"Granite worktop", internal.PrefixStone, "Other"},
		{"Wool carpet", internal.PrefixUnknown, "Other"},
		{"ＯＡＫ floor", internal.PrefixUnknown, "Other"},
		{"", internal.PrefixUnknown, "Other"},
	}

	for _, tc := range cases {
		t.Run(tc.finish, func(t *testing.T) {
			if got := tables.ClassifyPrefix(tc.finish); got != tc.prefix {
				t.Fatalf("prefix=%s want %s", got, tc.prefix)
			}
			if got := tables.ClassifyMaterialType(tc.finish); got != tc.typ {
				t.Fatalf("type=%s want %s", got, tc.typ)
			}
		})
	}
}

func TestNormalizePrices(t *testing.T) {
	defaults := internal.PriceRange{Low: 50, Mid: 80, High: 110}
	cases := []struct {
		name string
		in   internal.RawPrices
		want internal.PriceRange
	}{
		{name: "missing", in: internal.RawPrices{}, want: defaults},
		{name: "rounds", in: internal.RawPrices{Low: fp(44.4), Mid: fp(64.5), High: fp(85.51)}, want: internal.PriceRange{Low: 44, Mid: 65, High: 86}},
		{name: "partial", in: internal.RawPrices{Mid: fp(70)}, want: internal.PriceRange{Low: 50, Mid: 70, High: 110}},
		{name: "non finite", in: internal.RawPrices{Low: fp(math.NaN()), Mid: fp(math.Inf(1)), High: fp(math.Inf(-1))}, want: defaults},
		{name: "zero kept", in: internal.RawPrices{Low: fp(0), Mid: fp(0), High: fp(0)}, want: internal.PriceRange{}},
		{name: "negative half", in: internal.RawPrices{Low: fp(-2.5)}, want: internal.PriceRange{Low: -2, Mid: 80, High: 110}},
		{name: "just below half", in: internal.RawPrices{Low: fp(0.49999999999999994), Mid: fp(-0.5), High: fp(2.5)}, want: internal.PriceRange{Low: 0, Mid: 0, High: 3}},
		{name: "huge", in: internal.RawPrices{High: fp(1e300)}, want: defaults},
		{name: "unordered kept", in: internal.RawPrices{Low: fp(100), Mid: fp(20), High: fp(10)}, want: internal.PriceRange{Low: 100, Mid: 20, High: 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizePrices(tc.in, defaults)
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
			again := NormalizePrices(internal.RawPrices{
				Low:  fp(float64(got.Low)),
				Mid:  fp(float64(got.Mid)),
				High: fp(float64(got.High)),
			}, defaults)
			if again != got {
				t.Fatalf("not stable: %+v then %+v", got, again)
			}
		})
	}
}

func TestCodeHelpers(t *testing.T) {
	if FormatCode(internal.PrefixGlass, 3) != "GL-03" {
		t.Fatal(FormatCode(internal.PrefixGlass, 3))
	}
	if FormatCode(internal.PrefixGlass, 120) != "GL-120" {
		t.Fatal(FormatCode(internal.PrefixGlass, 120))
	}
	if CodeSequence("CT-12") != 12 || CodeSequence("nocode") != 0 || CodeSequence("WD-x") != 0 {
		t.Fatal("CodeSequence")
	}
}

func TestNormalizeInvariantsRandomised(t *testing.T) {
	words := []string{"oak", "steel", "glass", "tile", "marble", "paint", "carpet", "walnut", "mirror", "granite", "velvet", ""}
	rng := rand.New(rand.NewSource(42))
	tables := DefaultTables()

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(150)
		in := make([]internal.Candidate, n)
		for i := range in {
			in[i] = internal.Candidate{
				FinishDescription: words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))],
				Code:              "XX-99",
			}
		}

		got := Normalize(in, tables)
		if len(got) != n {
			t.Fatalf("iter %d: len=%d want %d", iter, len(got), n)
		}

		seen := map[string]bool{}
		next := map[internal.CategoryPrefix]int{}
		for i, r := range got {
			if seen[r.Code] {
				t.Fatalf("iter %d: duplicate code %s", iter, r.Code)
			}
			seen[r.Code] = true

			next[r.CategoryPrefix]++
			if CodeSequence(r.Code) != next[r.CategoryPrefix] {
				t.Fatalf("iter %d: %s out of sequence, want %d", iter, r.Code, next[r.CategoryPrefix])
			}
			if r.Code != FormatCode(r.CategoryPrefix, next[r.CategoryPrefix]) {
				t.Fatalf("iter %d: code %s does not match prefix %s", iter, r.Code, r.CategoryPrefix)
			}
			if i > 0 && got[i-1].CategoryPrefix > r.CategoryPrefix {
				t.Fatalf("iter %d: not sorted at %d", iter, i)
			}
			if r.SupplierContact != tables.Suppliers[i%len(tables.Suppliers)].Contact() {
				t.Fatalf("iter %d: supplier at %d", iter, i)
			}
		}
	}
}

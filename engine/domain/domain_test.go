package domain

import (
	"errors"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"VW Passat B8 Variant (3G)", "vw-passat-b8-variant-(3g)"},
		{"2.0 TDI", "2.0-tdi"},
		{"Zündkerze", "zuendkerze"},
		{"Kühler Größe", "kuehler-groesse"},
		{"Straße", "strasse"},
		{"", ""},
		{"  RIDEX  ", "ridex"},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	a := Slugify("VW Passat B8 Variant (3G)")
	b := Slugify("VW Passat B8 Variant (3G)")
	if a != b {
		t.Fatal("Slugify must be deterministic")
	}
}

func TestBrandSlug(t *testing.T) {
	if got := BrandSlug(BrandFebiBilstein); got != "febi-bilstein" {
		t.Errorf("multi-word brand should use override table, got %q", got)
	}
	if got := BrandSlug(BrandRIDEX); got != "ridex" {
		t.Errorf("BrandSlug(RIDEX) = %q", got)
	}
	if got := BrandSlug(BrandTRW); got != "trw" {
		t.Errorf("BrandSlug(TRW) = %q", got)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"30,91 €", 30.91},
		{"1,99€", 1.99},
		{"N/A", 0.0},
		{"", 0.0},
		{"149,00 €", 149.0},
		{"garbage", 0.0},
	}
	for _, c := range cases {
		if got := ParsePrice(c.in); got != c.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(PartQuery{RawText: "brake pads"}); err != nil {
		t.Fatalf("valid query rejected: %v", err)
	}
	if err := ValidateQuery(PartQuery{VehicleFragment: "vw-passat-b8"}); err != nil {
		t.Fatalf("fragment-only query rejected: %v", err)
	}

	err := ValidateQuery(PartQuery{RawText: "   "})
	if !errors.Is(err, ErrNoQueryTerm) {
		t.Fatalf("empty query should fail with ErrNoQueryTerm, got %v", err)
	}

	err = ValidateQuery(PartQuery{RawText: "oil filter", BrandFilters: []Brand{"Acme"}})
	if !errors.Is(err, ErrInvalidBrand) {
		t.Fatalf("unknown brand should fail, got %v", err)
	}
}

func TestValidateCode(t *testing.T) {
	if err := ValidateCode("0603", "BRA"); err != nil {
		t.Fatalf("valid code rejected: %v", err)
	}
	if err := ValidateCode("0588", "act"); err != nil {
		t.Fatalf("lowercase TSN rejected: %v", err)
	}
	if err := ValidateCode("60", "BRA"); !errors.Is(err, ErrInvalidHSN) {
		t.Fatalf("short HSN should fail, got %v", err)
	}
	if err := ValidateCode("0603", "TOOLONG"); !errors.Is(err, ErrInvalidTSN) {
		t.Fatalf("long TSN should fail, got %v", err)
	}
}

func TestVehicleIdentityComplete(t *testing.T) {
	v := VehicleIdentity{Brand: "VW", Model: "Passat B8", Engine: "2.0 TDI", KBAID: "19080"}
	if !v.Complete() {
		t.Fatal("fully populated identity should be complete")
	}
	v.Engine = ""
	if v.Complete() {
		t.Fatal("identity missing engine should not be complete")
	}
}

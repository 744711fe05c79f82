package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"krisha_radar/models"
)

func TestParseAnalyticsPayloadRental(t *testing.T) {
	body := []byte(`{
		"advert": {
			"title": "2-комнатная квартира, 52 м², 2/12 этаж",
			"description": "Сдается уютная квартира, жил. комплекс Meridian Apartments в Алматы. Рядом метро.",
			"price": "500&nbsp;000&nbsp;₸"
		}
	}`)

	l, err := ParseAnalyticsPayload("123", body, true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if l.Price != 500_000 {
		t.Errorf("price = %d, want 500000", l.Price)
	}
	if l.Area != 52 {
		t.Errorf("area = %v, want 52", l.Area)
	}
	if l.Floor != 2 || l.TotalFloors != 12 {
		t.Errorf("floor = %d/%d, want 2/12", l.Floor, l.TotalFloors)
	}
	if l.FlatType != models.FlatType1BR {
		t.Errorf("flat_type = %s, want 1br (room total counts the living room)", l.FlatType)
	}
	if l.ResidentialComplex != "Meridian Apartments" {
		t.Errorf("complex = %q, want Meridian Apartments", l.ResidentialComplex)
	}
	if !l.IsRental {
		t.Error("is_rental must come from the caller")
	}
	if l.ConstructionYear != 0 || l.Parking != "" {
		t.Errorf("year/parking must stay unset, got %d / %q", l.ConstructionYear, l.Parking)
	}
}

func TestParseAdvertStudio(t *testing.T) {
	l, err := ParseAdvert("7", "Студия, 31 м², 5/5 этаж", "", "22 000 000 ₸", 0, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.FlatType != models.FlatTypeStudio {
		t.Errorf("flat_type = %s, want studio", l.FlatType)
	}
	if l.Price != 22_000_000 {
		t.Errorf("price = %d, want 22000000", l.Price)
	}
	if l.Area != 31 || l.Floor != 5 || l.TotalFloors != 5 {
		t.Errorf("area=%v floor=%d/%d", l.Area, l.Floor, l.TotalFloors)
	}
	if l.ResidentialComplex != "" {
		t.Errorf("complex must be empty, got %q", l.ResidentialComplex)
	}
}

func TestParseAdvertCurrentPriceWins(t *testing.T) {
	body := []byte(`{
		"advert": {"title": "1-комнатная квартира, 40 м²", "price": "42&nbsp;000&nbsp;000&nbsp;₸"},
		"currentPrice": 41500000
	}`)
	l, err := ParseAnalyticsPayload("1", body, false)
	if err != nil {
		t.Fatal(err)
	}
	if l.Price != 41_500_000 {
		t.Errorf("currentPrice must win over the HTML price, got %d", l.Price)
	}
}

func TestParseAdvertMissingFields(t *testing.T) {
	_, err := ParseAdvert("1", "1-комнатная квартира, 40 м²", "", "", 0, true)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrMissingField || fe.Field != "price" {
		t.Errorf("want missing price, got %v", err)
	}

	_, err = ParseAdvert("1", "1-комнатная квартира", "без указания метража", "100 000 ₸", 0, true)
	if !errors.As(err, &fe) || fe.Kind != ErrMissingField || fe.Field != "area" {
		t.Errorf("want missing area, got %v", err)
	}
}

func TestParseAdvertFlatTypes(t *testing.T) {
	tests := []struct {
		title string
		want  models.FlatType
	}{
		{"1-комнатная квартира, 38 м²", models.FlatType1BR},
		{"2-комнатная квартира, 52 м²", models.FlatType1BR},
		{"3-комнатная квартира, 75 м²", models.FlatType2BR},
		{"4-комнатная квартира, 120 м²", models.FlatType3BRPlus},
		{"Студия, 28 м²", models.FlatTypeStudio},
		// no room count: area fallback
		{"Квартира, 28 м²", models.FlatTypeStudio},
		{"Квартира, 45 м²", models.FlatType1BR},
		{"Квартира, 70 м²", models.FlatType2BR},
		{"Квартира, 95 м²", models.FlatType3BRPlus},
	}
	for _, tt := range tests {
		l, err := ParseAdvert("1", tt.title, "", "10 000 000 ₸", 0, false)
		if err != nil {
			t.Fatalf("%q: %v", tt.title, err)
		}
		if l.FlatType != tt.want {
			t.Errorf("%q: flat_type = %s, want %s", tt.title, l.FlatType, tt.want)
		}
	}
}

func TestExtractComplexNameVariants(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{`Квартира в ЖК «Койтас». Хороший двор.`, "Койтас"},
		{`Продается в ЖК Koktem Grand, рядом школа.`, "Koktem Grand"},
		{`жилой комплекс Esentai City в Алматы, центр`, "Esentai City"},
		{`обычная квартира без комплекса`, ""},
		// "ЖК" glued inside a word must not trigger
		{`поДЖКлючен интернет`, ""},
	}
	for _, tt := range tests {
		if got := extractComplexName(normalizeText(tt.desc)); got != tt.want {
			t.Errorf("extractComplexName(%q) = %q, want %q", tt.desc, got, tt.want)
		}
	}
}

func TestExtractYearBounds(t *testing.T) {
	l, err := ParseAdvert("1", "Квартира, 50 м²", "дом 1890 г. постройки, отреставрирован", "10 000 000 ₸", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if l.ConstructionYear != 0 {
		t.Errorf("years before 1900 must be rejected, got %d", l.ConstructionYear)
	}

	l, err = ParseAdvert("1", "Квартира, 50 м²", "сдан в 2021 году", "10 000 000 ₸", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if l.ConstructionYear != 2021 {
		t.Errorf("year = %d, want 2021", l.ConstructionYear)
	}
}

func TestParseListingPageFixture(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "listing_sale.html"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	l, err := ParseListingPage("456", f, false)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if l.Price != 68_000_000 {
		t.Errorf("price = %d", l.Price)
	}
	if l.Area != 78 || l.Floor != 7 || l.TotalFloors != 12 {
		t.Errorf("area=%v floor=%d/%d", l.Area, l.Floor, l.TotalFloors)
	}
	if l.FlatType != models.FlatType2BR {
		t.Errorf("flat_type = %s, want 2br", l.FlatType)
	}
	if l.ResidentialComplex != "Meridian Apartments" {
		t.Errorf("complex = %q", l.ResidentialComplex)
	}
	if l.ConstructionYear != 2019 {
		t.Errorf("year = %d, want 2019", l.ConstructionYear)
	}
	if l.Parking != "подземная парковка" {
		t.Errorf("parking = %q", l.Parking)
	}
}

func TestParseListingPageKindMismatch(t *testing.T) {
	page := `<html><body>
		<div class="offer__advert-title"><h1>1-комнатная квартира, 40 м²</h1></div>
		<div class="offer__price">250 000 ₸ в месяц</div>
	</body></html>`

	_, err := ParseListingPage("1", strings.NewReader(page), false)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrKindMismatch {
		t.Fatalf("want kind mismatch, got %v", err)
	}
	if fe.WantRental {
		t.Error("WantRental must reflect the requested kind (sale)")
	}
	if fe.Bucket() != "kind_mismatch" {
		t.Errorf("bucket = %s", fe.Bucket())
	}
}

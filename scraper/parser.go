package scraper

import (
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"krisha_radar/models"
)

// All parsing regexes are compiled once at process start. Inputs are
// UTF-8 with Cyrillic text; NBSP and narrow spaces are folded to plain
// spaces before any pattern runs.
var (
	reDigits = regexp.MustCompile(`\d+`)
	reArea   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*м²`)
	reFloor  = regexp.MustCompile(`(\d+)\s*/\s*(\d+)\s*этаж`)
	reRooms  = regexp.MustCompile(`(?i)(\d+)\s*[-–]?\s*комнатн`)

	// Residential-complex patterns, tried in order; the first match wins.
	reComplexFull   = regexp.MustCompile(`(?i)жил(?:ой|\.)?\s*комплекс\s+([^,.;!?\n]+)`)
	reComplexQuoted = regexp.MustCompile(`(?i)(?:^|\s)ЖК\s*[«"']([^»"']+)[»"']`)
	reComplexBare   = regexp.MustCompile(`(?i)(?:^|\s)ЖК\s+([^,.;!?\n]+)`)

	reYearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)год\s+постройки[:\s]*(\d{4})`),
		regexp.MustCompile(`(?i)построен(?:о|а)?\s+(?:в\s+)?(\d{4})`),
		regexp.MustCompile(`(?i)сдан\s+в\s+(\d{4})`),
		regexp.MustCompile(`(\d{4})\s*г\.`),
	}

	// Ordered: the more specific labels first, bare "парковка" last.
	parkingKeywords = []string{
		"подземная парковка",
		"наземная парковка",
		"охраняемая стоянка",
		"парковка",
	}

	spaceFolder = strings.NewReplacer(
		" ", " ", // no-break space
		" ", " ", // narrow no-break space
		" ", " ", // thin space
		"&nbsp;", " ",
	)
)

// analyticsPayload is the JSON-ish body of the price-analysis endpoint.
type analyticsPayload struct {
	Advert struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       string `json:"price"` // HTML-ish, e.g. "500&nbsp;000&nbsp;₸"
	} `json:"advert"`
	CurrentPrice json.Number `json:"currentPrice"`
}

// ParseAnalyticsPayload decodes the analytics endpoint body and parses
// it into a Listing. isRental is supplied by the caller from the source
// endpoint kind.
func ParseAnalyticsPayload(flatID string, data []byte, isRental bool) (*models.Listing, error) {
	var p analyticsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &FetchError{Kind: ErrDecode, Cause: err}
	}

	var currentPrice int64
	if s := p.CurrentPrice.String(); s != "" {
		if v, err := p.CurrentPrice.Int64(); err == nil {
			currentPrice = v
		} else if f, err := p.CurrentPrice.Float64(); err == nil {
			currentPrice = int64(f)
		}
	}

	return ParseAdvert(flatID, p.Advert.Title, p.Advert.Description, p.Advert.Price, currentPrice, isRental)
}

// ParseListingPage parses a rendered listing page with the same
// extraction rules as the analytics payload. It also cross-checks the
// advertisement kind the page renders against the kind the caller
// requested.
func ParseListingPage(flatID string, r io.Reader, isRental bool) (*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &FetchError{Kind: ErrDecode, Cause: err}
	}

	title := strings.TrimSpace(doc.Find("div.offer__advert-title h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	description := strings.TrimSpace(doc.Find("div.offer__description").First().Text())
	priceText := strings.TrimSpace(doc.Find("div.offer__price").First().Text())

	// A rental page renders a monthly price ("... в месяц" / "/ мес").
	if priceText != "" {
		pageRental := strings.Contains(strings.ToLower(priceText), "мес")
		if pageRental != isRental {
			return nil, &FetchError{Kind: ErrKindMismatch, WantRental: isRental}
		}
	}

	return ParseAdvert(flatID, title, description, priceText, 0, isRental)
}

// ParseAdvert turns one advertisement's free text into a canonical
// Listing. Extraction rules apply in order; the first successful rule
// wins per field. Missing price or area is a typed failure; everything
// else is optional.
func ParseAdvert(flatID, title, description, priceHTML string, currentPrice int64, isRental bool) (*models.Listing, error) {
	title = normalizeText(title)
	description = normalizeText(description)

	price := currentPrice
	if price <= 0 {
		price = digitsToInt(priceHTML)
	}
	if price <= 0 {
		return nil, missingField("price")
	}

	area, ok := extractArea(title)
	if !ok {
		if area, ok = extractArea(description); !ok {
			return nil, missingField("area")
		}
	}

	l := &models.Listing{
		FlatID:      flatID,
		IsRental:    isRental,
		Price:       price,
		Area:        area,
		Description: description,
		ScrapedAt:   time.Now().UTC(),
	}

	// Floor: either both values or neither.
	if m := reFloor.FindStringSubmatch(title); m != nil {
		l.Floor, _ = strconv.Atoi(m[1])
		l.TotalFloors, _ = strconv.Atoi(m[2])
	} else if m := reFloor.FindStringSubmatch(description); m != nil {
		l.Floor, _ = strconv.Atoi(m[1])
		l.TotalFloors, _ = strconv.Atoi(m[2])
	}

	l.ResidentialComplex = extractComplexName(description)
	l.ConstructionYear = extractYear(title, description)
	l.Parking = extractParking(title, description)
	l.FlatType = extractFlatType(title, description, area)

	return l, nil
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(spaceFolder.Replace(s)))
}

// digitsToInt strips everything but digits and parses the remainder.
func digitsToInt(s string) int64 {
	parts := reDigits.FindAllString(spaceFolder.Replace(s), -1)
	if len(parts) == 0 {
		return 0
	}
	v, err := strconv.ParseInt(strings.Join(parts, ""), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func extractArea(s string) (float64, bool) {
	m := reArea.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func extractComplexName(description string) string {
	for _, re := range []*regexp.Regexp{reComplexFull, reComplexQuoted, reComplexBare} {
		m := re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if name := cleanComplexName(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// cleanComplexName trims captured complex names: cut location tails
// (" в Алматы", trailing city), strip wrapping quotes, bound length.
func cleanComplexName(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.Index(name, " в "); i > 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " Алматы"); i > 0 {
		name = name[:i]
	}
	name = strings.Trim(name, `"'«»`)
	name = strings.TrimSpace(name)
	if n := len([]rune(name)); n < 2 || n > 80 {
		return ""
	}
	return name
}

func extractYear(title, description string) int {
	maxYear := time.Now().Year() + 5
	for _, re := range reYearPatterns {
		for _, src := range []string{title, description} {
			for _, m := range re.FindAllStringSubmatch(src, -1) {
				year, err := strconv.Atoi(m[1])
				if err == nil && year >= 1900 && year <= maxYear {
					return year
				}
			}
		}
	}
	return 0
}

func extractParking(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, kw := range parkingKeywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}

// extractFlatType buckets by bedroom count. Room counts follow the
// local convention where the room total includes the living room, so a
// 2-комнатная is a one-bedroom flat; 1-комнатная flats land in the
// same bucket. Area thresholds are the fallback when the text names no
// room count.
func extractFlatType(title, description string, area float64) models.FlatType {
	text := strings.ToLower(title + " " + description)
	if strings.Contains(text, "студи") {
		return models.FlatTypeStudio
	}

	m := reRooms.FindStringSubmatch(title)
	if m == nil {
		m = reRooms.FindStringSubmatch(description)
	}
	if m != nil {
		rooms, err := strconv.Atoi(m[1])
		if err == nil && rooms >= 1 {
			switch {
			case rooms <= 2:
				return models.FlatType1BR
			case rooms == 3:
				return models.FlatType2BR
			default:
				return models.FlatType3BRPlus
			}
		}
	}

	switch {
	case area <= 30:
		return models.FlatTypeStudio
	case area <= 50:
		return models.FlatType1BR
	case area <= 80:
		return models.FlatType2BR
	default:
		return models.FlatType3BRPlus
	}
}

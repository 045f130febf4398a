package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"golang.org/x/net/html"
)

// ExtractedFields are the product facts pulled out of one raw listing body.
// String pointers are nil when the source did not carry the field at all;
// empty values are kept so placeholder detection can see them.
type ExtractedFields struct {
	RawCode         string
	Title           string
	Description     *string
	ReleaseDate     *time.Time
	DurationMinutes *uint
	MakerName       *string
	PriceJPY        *uint
	AffiliateURL    *string
	ListingURL      *string
	ThumbnailURL    *string
	SampleImageURLs []string
	PerformerNames  []string
	// PerformerIDs maps performer name to the source site's performer id,
	// when the payload carries one
	PerformerIDs map[string]string
	Genres       []string
}

// ParseFields extracts product facts from a raw listing body according to
// the source's payload shape
func ParseFields(source models.ASPName, body []byte) (*ExtractedFields, error) {
	switch source {
	case models.ASPDMM:
		return parseDMMItem(body)
	case models.ASPSokmil, models.ASPMGS:
		return parseDetailPage(body)
	case models.ASPDuga, models.ASPAdultfesta:
		return parseFeedRow(body)
	default:
		return nil, fmt.Errorf("no field extractor for source %q", source)
	}
}

// dmmItem mirrors the item object of the DMM affiliate API response
type dmmItem struct {
	ContentID    string `json:"content_id"`
	Title        string `json:"title"`
	URL          string `json:"URL"`
	AffiliateURL string `json:"affiliateURL"`
	Date         string `json:"date"`
	Volume       string `json:"volume"`
	Prices       struct {
		Price string `json:"price"`
	} `json:"prices"`
	ImageURL struct {
		Large string `json:"large"`
	} `json:"imageURL"`
	SampleImageURL struct {
		SampleL struct {
			Image []string `json:"image"`
		} `json:"sample_l"`
	} `json:"sampleImageURL"`
	ItemInfo struct {
		Actress []struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"actress"`
		Genre []struct {
			Name string `json:"name"`
		} `json:"genre"`
		Maker []struct {
			Name string `json:"name"`
		} `json:"maker"`
	} `json:"iteminfo"`
}

func parseDMMItem(body []byte) (*ExtractedFields, error) {
	var item dmmItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to decode dmm item: %w", err)
	}

	fields := &ExtractedFields{
		RawCode:         item.ContentID,
		Title:           strings.TrimSpace(item.Title),
		SampleImageURLs: item.SampleImageURL.SampleL.Image,
		PerformerIDs:    make(map[string]string),
	}

	if item.URL != "" {
		fields.ListingURL = utils.ToPtr(item.URL)
	}
	if item.AffiliateURL != "" {
		fields.AffiliateURL = utils.ToPtr(item.AffiliateURL)
	}
	if item.ImageURL.Large != "" {
		fields.ThumbnailURL = utils.ToPtr(item.ImageURL.Large)
	}
	if t := parseLooseDate(item.Date); t != nil {
		fields.ReleaseDate = t
	}
	if minutes := parseLooseUint(item.Volume); minutes != nil {
		fields.DurationMinutes = minutes
	}
	if price := parseLooseUint(item.Prices.Price); price != nil {
		fields.PriceJPY = price
	}
	for _, a := range item.ItemInfo.Actress {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		fields.PerformerNames = append(fields.PerformerNames, name)
		if a.ID.String() != "" {
			fields.PerformerIDs[name] = a.ID.String()
		}
	}
	for _, g := range item.ItemInfo.Genre {
		if g.Name != "" {
			fields.Genres = append(fields.Genres, g.Name)
		}
	}
	if len(item.ItemInfo.Maker) > 0 && item.ItemInfo.Maker[0].Name != "" {
		fields.MakerName = utils.ToPtr(item.ItemInfo.Maker[0].Name)
	}

	return fields, nil
}

// detailPageLabels maps the Japanese definition labels used on product detail
// pages to extraction targets. Both sokmil and mgs lay their spec tables out
// as label/value pairs.
var (
	labelCode      = []string{"品番", "商品番号"}
	labelPerformer = []string{"出演", "出演者", "女優"}
	labelGenre     = []string{"ジャンル", "カテゴリ"}
	labelMaker     = []string{"メーカー", "レーベル"}
	labelDuration  = []string{"収録時間", "再生時間"}
	labelRelease   = []string{"配信開始日", "発売日", "公開日"}
)

func parseDetailPage(body []byte) (*ExtractedFields, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	fields := &ExtractedFields{
		Title:        metaContent(doc, "og:title"),
		PerformerIDs: make(map[string]string),
	}
	if u := metaContent(doc, "og:url"); u != "" {
		fields.ListingURL = utils.ToPtr(u)
	}
	if img := metaContent(doc, "og:image"); img != "" {
		fields.ThumbnailURL = utils.ToPtr(img)
	}
	if desc := metaContent(doc, "og:description"); desc != "" {
		fields.Description = utils.ToPtr(desc)
	}

	defs := collectDefinitions(doc)
	fields.RawCode = firstDefinition(defs, labelCode)
	if names := firstDefinition(defs, labelPerformer); names != "" {
		fields.PerformerNames = splitNameList(names)
	}
	if genres := firstDefinition(defs, labelGenre); genres != "" {
		fields.Genres = splitNameList(genres)
	}
	if maker := firstDefinition(defs, labelMaker); maker != "" {
		fields.MakerName = utils.ToPtr(maker)
	}
	if dur := firstDefinition(defs, labelDuration); dur != "" {
		fields.DurationMinutes = parseLooseUint(dur)
	}
	if rel := firstDefinition(defs, labelRelease); rel != "" {
		fields.ReleaseDate = parseLooseDate(rel)
	}

	if fields.Title == "" && fields.RawCode == "" {
		return nil, fmt.Errorf("detail page carries neither title nor product code")
	}
	return fields, nil
}

// feedFieldAliases maps extraction targets to the column headers feed sources
// use for them. duga ships lowercase ascii headers, adultfesta Japanese ones.
var feedFieldAliases = map[string][]string{
	"code":       {"itemno", "品番"},
	"title":      {"title", "商品名"},
	"caption":    {"caption", "説明"},
	"date":       {"opendate", "発売日"},
	"price":      {"price", "価格"},
	"performer":  {"performer", "出演者"},
	"genre":      {"category", "ジャンル"},
	"maker":      {"maker", "メーカー"},
	"url":        {"url", "URL"},
	"affiliate":  {"affiliateurl", "アフィリエイトURL"},
	"image":      {"image", "画像URL"},
	"duration":   {"duration", "収録時間"},
}

func parseFeedRow(body []byte) (*ExtractedFields, error) {
	var row map[string]string
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("failed to decode feed row: %w", err)
	}

	get := func(target string) string {
		for _, alias := range feedFieldAliases[target] {
			if v, ok := row[alias]; ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	fields := &ExtractedFields{
		RawCode:      get("code"),
		Title:        get("title"),
		PerformerIDs: make(map[string]string),
	}
	if caption := get("caption"); caption != "" {
		fields.Description = utils.ToPtr(caption)
	}
	if date := get("date"); date != "" {
		fields.ReleaseDate = parseLooseDate(date)
	}
	if price := get("price"); price != "" {
		fields.PriceJPY = parseLooseUint(price)
	}
	if performers := get("performer"); performers != "" {
		fields.PerformerNames = splitNameList(performers)
	}
	if genres := get("genre"); genres != "" {
		fields.Genres = splitNameList(genres)
	}
	if maker := get("maker"); maker != "" {
		fields.MakerName = utils.ToPtr(maker)
	}
	if u := get("url"); u != "" {
		fields.ListingURL = utils.ToPtr(u)
	}
	if aff := get("affiliate"); aff != "" {
		fields.AffiliateURL = utils.ToPtr(aff)
	}
	if img := get("image"); img != "" {
		fields.ThumbnailURL = utils.ToPtr(img)
	}
	if dur := get("duration"); dur != "" {
		fields.DurationMinutes = parseLooseUint(dur)
	}

	return fields, nil
}

// metaContent returns the content attribute of the <meta> node with the given
// property or name
func metaContent(doc *html.Node, property string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var prop, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property", "name":
					prop = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if prop == property {
				result = strings.TrimSpace(content)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return result
}

// collectDefinitions walks dt/dd and th/td pairs into a label-to-value map
func collectDefinitions(doc *html.Node) map[string]string {
	defs := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "dt" || n.Data == "th") {
			label := strings.TrimSpace(nodeText(n))
			label = strings.TrimSuffix(label, ":")
			label = strings.TrimSuffix(label, "：")
			if label != "" {
				if value := siblingValue(n); value != "" {
					if _, seen := defs[label]; !seen {
						defs[label] = value
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return defs
}

// firstDefinition returns the value of the first label alias present in defs
func firstDefinition(defs map[string]string, labels []string) string {
	for _, label := range labels {
		if v := defs[label]; v != "" {
			return v
		}
	}
	return ""
}

// siblingValue returns the text of the dd/td element following a dt/th
func siblingValue(n *html.Node) string {
	want := "dd"
	if n.Data == "th" {
		want = "td"
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == want {
			return strings.TrimSpace(nodeText(s))
		}
	}
	return ""
}

// nodeText concatenates the visible text under a node
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// splitNameList splits a delimited list of names as feed and page sources
// write them
func splitNameList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '、', '/', '／', ';':
			return true
		}
		return false
	})
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseLooseDate tries the date layouts seen across source payloads
func parseLooseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
		"2006年01月02日",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// parseLooseUint pulls the leading number out of strings like "980円" or
// "120分"
func parseLooseUint(s string) *uint {
	s = strings.TrimSpace(s)
	digits := strings.Builder{}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	n, err := strconv.ParseUint(digits.String(), 10, 32)
	if err != nil {
		return nil
	}
	v := uint(n)
	return &v
}

package pest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/farm-assistant/internal/common"
)

const (
	DefaultListURL   = "https://ncpms.rda.go.kr/npms/NewIndcUserListR.np"
	DefaultDetailURL = "https://ncpms.rda.go.kr/npms/NewIndcUserR.np"

	latestLinkSelector = ".tabelRound tbody tr td:nth-child(2) a"
	forecastSelector   = ".forecast li"
	watchSelector      = ".watch li"
	warningSelector    = ".warning li"
)

var (
	quotedArg     = regexp.MustCompile(`'([^']*)'`)
	cropSuffix    = regexp.MustCompile(`\([^-]+-([^)]+)\)`)
	parenthesized = regexp.MustCompile(`\(.*?\)`)
)

// Scraper reads the newest bulletin from the pest forecast website.
type Scraper struct {
	listURL   string
	detailURL string
	requester *common.Requester
}

func NewScraper(client *http.Client, listURL, detailURL string) *Scraper {
	if listURL == "" {
		listURL = DefaultListURL
	}
	if detailURL == "" {
		detailURL = DefaultDetailURL
	}
	return &Scraper{
		listURL:   listURL,
		detailURL: detailURL,
		requester: common.NewRequester("ncpms", client, common.DefaultBackoff),
	}
}

// Latest fetches the bulletin list, follows the newest entry and parses it.
func (s *Scraper) Latest(ctx context.Context) (Bulletin, error) {
	list, err := s.fetch(ctx, s.listURL)
	if err != nil {
		return Bulletin{}, fmt.Errorf("fetch bulletin list: %w", err)
	}
	seq, err := latestSeq(list)
	if err != nil {
		return Bulletin{}, err
	}

	q := url.Values{}
	q.Set("indcMon", "")
	q.Set("indcSeq", seq)
	detail, err := s.fetch(ctx, s.detailURL+"?"+q.Encode())
	if err != nil {
		return Bulletin{}, fmt.Errorf("fetch bulletin %s: %w", seq, err)
	}

	b := parseBulletin(detail)
	b.Seq = seq
	return b, nil
}

func (s *Scraper) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	resp, err := s.requester.Do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return goquery.NewDocumentFromReader(resp.Body)
}

// latestSeq reads the sequence number from the onclick handler of the first
// list entry, e.g. onclick="fncDetail('229'); return false;".
func latestSeq(doc *goquery.Document) (string, error) {
	link := doc.Find(latestLinkSelector).First()
	if link.Length() == 0 {
		return "", fmt.Errorf("%w: no bulletin in list", ErrBulletinUnavailable)
	}
	onclick, _ := link.Attr("onclick")
	m := quotedArg.FindStringSubmatch(onclick)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", fmt.Errorf("%w: no sequence in %q", ErrBulletinUnavailable, onclick)
	}
	return strings.TrimSpace(m[1]), nil
}

func parseBulletin(doc *goquery.Document) Bulletin {
	return Bulletin{
		Forecasts: parseSection(doc, forecastSelector),
		Watches:   parseSection(doc, watchSelector),
		Warnings:  parseSection(doc, warningSelector),
	}
}

func parseSection(doc *goquery.Document, selector string) []Advisory {
	entries := []Advisory{}
	doc.Find(selector).Each(func(_ int, li *goquery.Selection) {
		if a, ok := parseAdvisory(li.Text()); ok {
			entries = append(entries, a)
		}
	})
	return entries
}

// parseAdvisory splits "갈색날개매미충 (과수-사과)" into name and crop. Entries
// without a crop suffix are dropped.
func parseAdvisory(text string) (Advisory, bool) {
	m := cropSuffix.FindStringSubmatch(text)
	if m == nil {
		return Advisory{}, false
	}
	return Advisory{
		Name: strings.TrimSpace(parenthesized.ReplaceAllString(text, "")),
		Crop: m[1],
	}, true
}

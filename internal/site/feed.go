package site

import (
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
)

// feed renders the RSS document. entries must already be sorted oldest
// first; items are appended in that order, and the channel's updated time is
// the newest item timestamp.
func (g *Generator) feed(entries []entry) ([]byte, error) {
	f := &feeds.Feed{
		Title:       g.site.Title,
		Link:        &feeds.Link{Href: g.site.BaseURL},
		Description: g.site.Description,
		Id:          g.site.BaseURL,
	}
	if g.site.Author != "" || g.site.Email != "" {
		f.Author = &feeds.Author{Name: g.site.Author, Email: g.site.Email}
	}

	var lastUpdate time.Time
	for _, e := range entries {
		ts := g.timestamp(e.post.Meta.Date)
		if ts.After(lastUpdate) {
			lastUpdate = ts
		}
		item := &feeds.Item{
			Title:       e.post.Meta.Title(),
			Link:        &feeds.Link{Href: e.url},
			Description: e.post.Meta.Description,
			Id:          ItemGUID(e.url),
			Created:     ts,
		}
		if f.Author != nil {
			item.Author = f.Author
		}
		f.Add(item)
	}
	f.Updated = lastUpdate

	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = g.site.Language
	out, err := feeds.ToXML(rss)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// timestamp is the publication date at midnight in the site timezone.
func (g *Generator) timestamp(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, g.loc)
}

// ItemGUID is the name-based (v5) UUID of a post URL. It is stable across
// builds and independent of the item's position in the feed.
func ItemGUID(postURL string) string {
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(postURL)).String()
}

func pathEscape(s string) string { return url.PathEscape(s) }

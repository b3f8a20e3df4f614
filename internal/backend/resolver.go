package backend

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/matheus3301/stash/internal/model"
	"go.uber.org/zap"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// detectWebpage returns a pending preview for the first link in text.
func detectWebpage(text string) *model.Webpage {
	link := urlPattern.FindString(text)
	if link == "" {
		return nil
	}
	link = strings.TrimRight(link, ".,;:!?)")
	return &model.Webpage{URL: link, Pending: true}
}

// describe derives a preview from the link itself.
func describe(link string) (title, description string) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link, ""
	}
	return strings.TrimPrefix(u.Host, "www."), strings.Trim(u.Path, "/")
}

func (be *Backend) resolveScheduled() {
	if _, err := be.ResolvePending(time.Now()); err != nil {
		be.logger.Warn("resolve webpages failed", zap.Error(err))
	}
}

// ResolvePending resolves the previews pending for at least ResolveDelay as
// of now and pushes the resulting updates to listeners. It returns how many
// previews were resolved.
func (be *Backend) ResolvePending(now time.Time) (int, error) {
	pending, err := be.db.PendingWebpages(now.Add(-be.opts.ResolveDelay), 0)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	n := 0
	for _, p := range pending {
		title, desc := describe(p.URL)
		if err := be.db.ResolveWebpage(p.MessageID, title, desc); err != nil {
			be.logger.Warn("resolve webpage failed", zap.Int64("message_id", int64(p.MessageID)), zap.Error(err))
			continue
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	be.logger.Debug("webpages resolved", zap.Int("count", n))

	u, err := be.snapshot()
	if err != nil {
		return n, err
	}
	be.push(u)
	return n, nil
}

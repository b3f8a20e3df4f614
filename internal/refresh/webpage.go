package refresh

import (
	"math"
	"time"

	"github.com/matheus3301/stash/internal/model"
	"go.uber.org/zap"
)

// Options tunes the coalescer.
type Options struct {
	// Window is the debounce window used when a caller passes no timeout.
	Window time.Duration

	// WebpageDelay is the wait before the first re-poll of a pending preview.
	WebpageDelay time.Duration
	// WebpageBackoff multiplies the delay after every attempt.
	WebpageBackoff float64
	// WebpageMaxDelay caps the delay between polls.
	WebpageMaxDelay time.Duration
	// WebpageMaxAttempts bounds the number of refreshes per preview.
	WebpageMaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = time.Second
	}
	if o.WebpageDelay <= 0 {
		o.WebpageDelay = 500 * time.Millisecond
	}
	if o.WebpageBackoff < 1 {
		o.WebpageBackoff = 2
	}
	if o.WebpageMaxDelay <= 0 {
		o.WebpageMaxDelay = 10 * time.Second
	}
	if o.WebpageMaxAttempts <= 0 {
		o.WebpageMaxAttempts = 8
	}
	return o
}

// WebpageSource reads a message's preview from the client state.
type WebpageSource interface {
	MessageWebpage(folderID model.FolderID, id model.MessageID) *model.Webpage
}

// RefreshMessageWebpage refreshes a message until its webpage preview is no
// longer pending. Polling stops after WebpageMaxAttempts refreshes, and the
// delay between polls grows by WebpageBackoff up to WebpageMaxDelay.
func (c *Coalescer) RefreshMessageWebpage(src WebpageSource, folder model.Folder, id model.MessageID) bool {
	return c.pollWebpage(src, folder, id, 1)
}

func (c *Coalescer) pollWebpage(src WebpageSource, folder model.Folder, id model.MessageID, attempt int) bool {
	return c.RefreshMessage(folder, id, c.opts.Window, func() {
		wp := src.MessageWebpage(folder.ID, id)
		if wp == nil || !wp.Pending {
			return
		}
		if attempt >= c.opts.WebpageMaxAttempts {
			c.logger.Warn("webpage preview still pending, giving up",
				zap.Int64("folder_id", int64(folder.ID)),
				zap.Int64("message_id", int64(id)),
				zap.Int("attempts", attempt))
			return
		}
		time.AfterFunc(c.webpageDelay(attempt), func() {
			c.pollWebpage(src, folder, id, attempt+1)
		})
	})
}

// webpageDelay returns the wait after the given attempt (1-based).
func (c *Coalescer) webpageDelay(attempt int) time.Duration {
	d := float64(c.opts.WebpageDelay) * math.Pow(c.opts.WebpageBackoff, float64(attempt-1))
	if d > float64(c.opts.WebpageMaxDelay) {
		return c.opts.WebpageMaxDelay
	}
	return time.Duration(d)
}

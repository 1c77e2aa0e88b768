// Package browser opens contest pages in the user's default browser.
package browser

import (
	"fmt"
	"net/url"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"

	"contestwatch/internal/domain"
)

// Opener hands contest links to the system browser.
type Opener struct {
	open func(u string)
	log  logrus.FieldLogger
}

// NewOpener uses the launcher's platform specific open command.
func NewOpener(logger logrus.FieldLogger) *Opener {
	return &Opener{
		open: launcher.Open,
		log:  logger.WithField("component", "browser"),
	}
}

// OpenContest opens the contest's link. Only absolute http(s) links are accepted.
func (o *Opener) OpenContest(c domain.Contest) error {
	u, err := url.Parse(c.Link)
	if err != nil {
		return fmt.Errorf("invalid link for %s: %w", c.ID, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open non-web link %q for %s", c.Link, c.ID)
	}

	o.log.WithFields(logrus.Fields{"contest_id": c.ID, "url": c.Link}).Info("Opening contest page")
	o.open(u.String())
	return nil
}

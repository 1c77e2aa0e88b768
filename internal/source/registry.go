package source

import (
	"github.com/sirupsen/logrus"

	"contestwatch/internal/config"
)

// DefaultAdapters builds the four platform adapters from configuration.
func DefaultAdapters(cfg config.SourcesConfig, sink StatusSink, now Clock, logger logrus.FieldLogger) []Adapter {
	client := NewJSONClient(cfg.Timeout)
	return []Adapter{
		NewCodeforcesAdapter(client, cfg.CodeforcesURL, sink, now, logger),
		NewLeetCodeAdapter(sink, now, logger),
		NewCodeChefAdapter(client, cfg.CodeChefURL, sink, now, logger),
		NewGFGAdapter(sink, now, logger),
	}
}

// Package filters provides answer hooks that veto generated replies.
package filters

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/plugins"
)

const (
	URLFilterName       = "urlfilter"
	BackquoteFilterName = "backquotefilter"
)

var urlPattern = regexp.MustCompile(`https?://`)

// Filter vetoes answers matching a predicate.
type Filter struct {
	name  string
	match func(answer string) bool
	log   *zap.Logger
}

// NewURLFilter blocks answers containing a link.
func NewURLFilter(host plugins.Host) (plugins.Plugin, error) {
	return &Filter{name: URLFilterName, match: urlPattern.MatchString, log: host.Logger().Named(URLFilterName)}, nil
}

// NewBackquoteFilter blocks answers containing a code fence.
func NewBackquoteFilter(host plugins.Host) (plugins.Plugin, error) {
	return &Filter{
		name:  BackquoteFilterName,
		match: func(s string) bool { return strings.Contains(s, "```") },
		log:   host.Logger().Named(BackquoteFilterName),
	}, nil
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Hooks() []events.Entry {
	return []events.Entry{{Kind: events.KindAnswer, Name: f.name, Hook: f.check}}
}

func (f *Filter) check(_ context.Context, ev *events.Event) (bool, error) {
	if f.match(ev.Answer) {
		f.log.Warn("answer vetoed", zap.String("server", ev.ServerID()))
		return false, nil
	}
	return true, nil
}

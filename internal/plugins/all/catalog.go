// Package all registers every built-in plugin.
package all

import (
	"github.com/dayuer/cacophony-go/internal/plugins"
	"github.com/dayuer/cacophony-go/internal/plugins/cheese"
	"github.com/dayuer/cacophony-go/internal/plugins/filters"
	"github.com/dayuer/cacophony-go/internal/plugins/reminder"
	"github.com/dayuer/cacophony-go/internal/plugins/reverse"
	"github.com/dayuer/cacophony-go/internal/plugins/roulette"
	"github.com/dayuer/cacophony-go/internal/plugins/welcome"
)

// Catalog maps plugin names usable in the "plugins" config list to their
// factories.
func Catalog() plugins.Catalog {
	return plugins.Catalog{
		reverse.Name:                reverse.New,
		roulette.Name:               roulette.New,
		reminder.Name:               reminder.New,
		filters.URLFilterName:       filters.NewURLFilter,
		filters.BackquoteFilterName: filters.NewBackquoteFilter,
		welcome.Name:                welcome.New,
		cheese.Name:                 cheese.New,
	}
}

package all

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/cacophony-go/internal/plugins/plugintest"
)

func TestCatalog_EveryFactoryBuilds(t *testing.T) {
	cat := Catalog()
	assert.Equal(t, []string{"backquotefilter", "cheese", "reminder", "reverse", "roulette", "urlfilter", "welcome"}, cat.Names())

	host := plugintest.New(t)
	for name, factory := range cat {
		p, err := factory(host)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}
}

package domains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupExact(t *testing.T) {
	reg := Default()

	cfg, ok := reg.Lookup("www.amazon.com")
	require.True(t, ok)
	require.Equal(t, "amazon", cfg.Name)
	require.NotEmpty(t, cfg.PriceSelectors)
}

func TestLookupSubdomainFallback(t *testing.T) {
	reg := Default()

	// images.amazon.com shares the amazon.com suffix with the
	// registered www.amazon.com entry
	cfg, ok := reg.Lookup("images.amazon.com")
	require.True(t, ok)
	require.Equal(t, "amazon", cfg.Name)

	_, ok = reg.Lookup("shop.example.org")
	require.False(t, ok)
}

func TestLookupNoFallbackForBareDomain(t *testing.T) {
	reg := Default()

	// two labels only: no suffix heuristic applies
	_, ok := reg.Lookup("amazon.com")
	require.False(t, ok)

	_, ok = reg.Lookup("unknown-store.io")
	require.False(t, ok)
}

func TestLookupDeterministicFallback(t *testing.T) {
	reg := Registry{
		"b.store.com": {Name: "second"},
		"a.store.com": {Name: "first"},
	}

	for i := 0; i < 10; i++ {
		cfg, ok := reg.Lookup("cdn.store.com")
		require.True(t, ok)
		require.Equal(t, "first", cfg.Name)
	}
}

package lexicon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

func TestFoldTurkish(t *testing.T) {
	assert.Equal(t, "giris", Fold("GİRİŞ"))
	assert.Equal(t, "giris", Fold("giriş"))
	assert.Equal(t, "kaldirac", Fold("Kaldıraç"))
	assert.Equal(t, "alim bolgesi", Fold("Alım Bölgesi"))
	assert.True(t, HasTurkishLetters("hedef ş"))
	assert.False(t, HasTurkishLetters("target"))
}

func TestMatchPhraseLongestFirst(t *testing.T) {
	l := Default()

	k, ok := l.MatchPhrase(strings.Fields("stop loss 90"))
	require.True(t, ok)
	assert.Equal(t, FieldStop, k.Field)
	assert.Len(t, k.Words, 2)

	k, ok = l.MatchPhrase(strings.Fields("giris bolgesi 100"))
	require.True(t, ok)
	assert.Equal(t, FieldEntry, k.Field)
	assert.Len(t, k.Words, 2)

	k, ok = l.MatchPhrase([]string{"buy"})
	require.True(t, ok)
	assert.Equal(t, FieldSide, k.Field)
	assert.Equal(t, models.SideLong, k.Side)
	assert.Equal(t, FieldEntry, k.Alt)

	_, ok = l.MatchPhrase([]string{"btc"})
	assert.False(t, ok)
}

func TestMatchToken(t *testing.T) {
	l := Default()
	cases := map[string]Field{
		"tp":       FieldTargets,
		"tp2":      FieldTargets,
		"target":   FieldTargets,
		"targets":  FieldTargets,
		"hedef3":   FieldTargets,
		"hedefler": FieldTargets,
		"20x":      FieldLeverage,
		"x10":      FieldLeverage,
	}
	for word, want := range cases {
		p, ok := l.MatchToken(word)
		require.True(t, ok, word)
		assert.Equal(t, want, p.Field, word)
	}
	_, ok := l.MatchToken("tpx")
	assert.False(t, ok)
}

func TestNewWithConfig(t *testing.T) {
	l, err := New(Config{
		Extra:         map[string][]string{"stop": {"Kayıp"}, "short": {"düşüş"}},
		Blacklist:     []string{"MOON"},
		QuoteAsset:    "usdc",
		QuoteSuffixes: []string{"usd", "usdc"},
	})
	require.NoError(t, err)

	k, ok := l.MatchPhrase([]string{"kayip"})
	require.True(t, ok)
	assert.Equal(t, FieldStop, k.Field)

	k, ok = l.MatchPhrase([]string{"dusus"})
	require.True(t, ok)
	assert.Equal(t, models.SideShort, k.Side)

	assert.True(t, l.IsBlacklisted("moon"))
	assert.True(t, l.IsBlacklisted("kayip"))
	assert.Equal(t, "USDC", l.DefaultQuote())
	assert.Equal(t, []string{"USDC", "USD"}, l.QuoteAssets())

	_, err = New(Config{Extra: map[string][]string{"volume": {"vol"}}})
	assert.Error(t, err)
}

func TestNumberPattern(t *testing.T) {
	l := Default()
	m := l.NumberPattern().FindAllStringSubmatch("0,125 42k 20x 1.5 bin", -1)
	require.Len(t, m, 4)
	assert.Equal(t, "0,125", m[0][2])
	assert.Equal(t, "k", m[1][3])
	assert.Equal(t, "x", m[2][4])
	assert.Equal(t, "bin", m[3][3])

	v, ok := l.Multiplier("K")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)
}

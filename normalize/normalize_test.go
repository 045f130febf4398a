package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductCode(t *testing.T) {
	cases := []struct {
		name   string
		source string
		raw    string
		want   string
	}{
		{"plain maker code", "adultfesta", "ABW-123", "ABW-123"},
		{"lowercase with zeros", "adultfesta", "abw00123", "ABW-123"},
		{"underscore separator", "adultfesta", "abw_123", "ABW-123"},
		{"short number padded", "adultfesta", "ABC-7", "ABC-007"},
		{"dmm cid channel prefix", "dmm", "h_086abw00123", "ABW-123"},
		{"dmm cid label prefix", "dmm", "118abw00123", "ABW-123"},
		{"dmm plain cid", "dmm", "abw00123", "ABW-123"},
		{"mgs label prefix", "mgs", "300MIUM-001", "MIUM-001"},
		{"sokmil is site qualified", "sokmil", "ABC-123", "SOKMIL:ABC-123"},
		{"duga freeform id", "duga", "kmproduce/0456", "DUGA:KMPRODUCE-0456"},
		{"unparseable falls back to qualified", "dmm", "1234567890", "DMM:1234567890"},
		{"empty", "dmm", "", ""},
		{"whitespace only", "dmm", "   ", ""},
		{"punctuation only", "adultfesta", "!!??", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProductCode(tc.source, tc.raw))
		})
	}
}

func TestProductCodeAgreesAcrossSources(t *testing.T) {
	// The same physical release listed on two shared-code sources must land
	// on one normalized id.
	a := ProductCode("dmm", "h_086abw00123")
	b := ProductCode("mgs", "ABW-123")
	assert.Equal(t, a, b)
	assert.Equal(t, "ABW-123", a)
}

func TestIsPlaceholderTitle(t *testing.T) {
	assert.True(t, IsPlaceholderTitle("", "ABW-123"))
	assert.True(t, IsPlaceholderTitle("---", "ABW-123"))
	assert.True(t, IsPlaceholderTitle("ABW-123", "ABW-123"))
	assert.True(t, IsPlaceholderTitle("abw00123", "ABW-123"))
	assert.True(t, IsPlaceholderTitle("商品詳細", "ABW-123"))
	assert.True(t, IsPlaceholderTitle("新作", "ABW-123"))
	assert.False(t, IsPlaceholderTitle("本物のタイトルです", "ABW-123"))
	assert.False(t, IsPlaceholderTitle("A Real English Title", "ABW-123"))
}

func TestPerformerName(t *testing.T) {
	t.Run("valid names pass through", func(t *testing.T) {
		got, err := PerformerName("  三上  悠亜 ")
		assert.NoError(t, err)
		assert.Equal(t, "三上 悠亜", got)
	})

	t.Run("single rune rejected", func(t *testing.T) {
		_, err := PerformerName("デ")
		assert.ErrorIs(t, err, ErrInvalidPerformerName)
	})

	t.Run("denylist rejected", func(t *testing.T) {
		for _, bad := range []string{"不明", "素人", "unknown", "N/A"} {
			_, err := PerformerName(bad)
			assert.ErrorIs(t, err, ErrInvalidPerformerName, bad)
		}
	})

	t.Run("no letters rejected", func(t *testing.T) {
		_, err := PerformerName("12 34")
		assert.ErrorIs(t, err, ErrInvalidPerformerName)
	})

	t.Run("urls rejected", func(t *testing.T) {
		_, err := PerformerName("https://example.com/profile")
		assert.ErrorIs(t, err, ErrInvalidPerformerName)
	})
}

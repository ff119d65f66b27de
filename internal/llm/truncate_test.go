package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateUnderLimit(t *testing.T) {
	for _, text := range []string{"", "abc", strings.Repeat("入", 10)} {
		got, cut, n := Truncate(text, 10)
		assert.Equal(t, text, got)
		assert.False(t, cut)
		assert.Equal(t, utf8.RuneCountInString(text), n)
	}
}

func TestTruncateOverLimit(t *testing.T) {
	text := strings.Repeat("病", 15)
	got, cut, n := Truncate(text, 10)
	require.True(t, cut)
	assert.Equal(t, 15, n)
	assert.Equal(t, strings.Repeat("病", 10)+TruncationMarker(15), got)
	assert.True(t, strings.HasSuffix(got, "...[内容过长已截断，原长度: 15 字符]"))
}

func TestTruncateIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"short",
		strings.Repeat("a", 100),
		strings.Repeat("x", 101),
		strings.Repeat("标准", 400),
		strings.Repeat("y", 50) + TruncationMarker(9999),
	}
	for _, limit := range []int{0, 1, 50, 100, 500} {
		for _, in := range inputs {
			once, _, _ := Truncate(in, limit)
			twice, _, _ := Truncate(once, limit)
			assert.Equal(t, once, twice, "limit=%d len=%d", limit, utf8.RuneCountInString(in))
		}
	}
}

func TestTruncateTwiceKeepsOriginalLength(t *testing.T) {
	once, _, _ := Truncate(strings.Repeat("z", 30), 20)
	_, cut, n := Truncate(once, 20)
	assert.True(t, cut)
	assert.Equal(t, 30, n)
}

func TestTruncateTrustsMarkerShape(t *testing.T) {
	pasted := strings.Repeat("p", 10) + TruncationMarker(99)
	got, cut, n := Truncate(pasted, 10)
	assert.True(t, cut)
	assert.Equal(t, pasted, got)
	assert.Equal(t, 99, n, "length comes from the marker")
	assert.Less(t, utf8.RuneCountInString(pasted), n)

	// one rune off the limit and the marker is just text
	shifted := strings.Repeat("p", 11) + TruncationMarker(99)
	got, cut, n = Truncate(shifted, 10)
	assert.True(t, cut)
	assert.Equal(t, utf8.RuneCountInString(shifted), n)
	assert.Equal(t, strings.Repeat("p", 10)+TruncationMarker(n), got)
}

func TestTruncateMarkerWithDifferentLimitIsCutAgain(t *testing.T) {
	once, _, _ := Truncate(strings.Repeat("z", 30), 20)
	got, cut, n := Truncate(once, 10)
	require.True(t, cut)
	assert.Equal(t, utf8.RuneCountInString(once), n)
	assert.Equal(t, strings.Repeat("z", 10)+TruncationMarker(n), got)
}

func TestGuardOversizedCase(t *testing.T) {
	g := Guard{CriteriaLimit: 10000, CaseLimit: 20000}
	criteria := "inclusion: adults"
	caseText := strings.Repeat("c", 25000)

	gotCriteria, gotCase, notices := g.Apply(criteria, caseText)
	assert.Equal(t, criteria, gotCriteria)
	require.Len(t, notices, 1)
	assert.Equal(t, TruncationNotice{Field: "case", OriginalLength: 25000, Limit: 20000}, notices[0])
	assert.Equal(t, strings.Repeat("c", 20000)+TruncationMarker(25000), gotCase)
}

func TestGuardBothFields(t *testing.T) {
	g := Guard{CriteriaLimit: 3, CaseLimit: 5}
	_, _, notices := g.Apply("criteria", "patient case")
	require.Len(t, notices, 2)
	assert.Equal(t, "criteria", notices[0].Field)
	assert.Equal(t, "case", notices[1].Field)
	assert.Equal(t, "case text truncated: 12 characters, limit 5", notices[1].String())
}

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/trial-screener/constants"
)

func TestBuildExtractionPrompt(t *testing.T) {
	p := BuildExtractionPrompt("PROTOCOL TEXT")
	assert.Equal(t, constants.OpExtractCriteria, p.Operation)
	require.Len(t, p.Messages, 2)
	assert.Equal(t, RoleSystem, p.Messages[0].Role)
	assert.Contains(t, p.Messages[1].Content, "Inclusion Criteria")
	assert.Contains(t, p.Messages[1].Content, "Exclusion Criteria")
	assert.True(t, strings.HasSuffix(p.Messages[1].Content, "PROTOCOL TEXT"))
}

func TestBuildOrganizePrompt(t *testing.T) {
	p := BuildOrganizePrompt("ALT 40 U/L")
	require.Len(t, p.Messages, 2)
	user := p.Messages[1].Content
	for _, section := range []string{"血液生化指标", "尿检", "凝血检查", "血常规"} {
		assert.Contains(t, user, section)
	}
	assert.True(t, strings.HasSuffix(user, "ALT 40 U/L"))
}

func TestBuildClassifyPrompt(t *testing.T) {
	p := BuildClassifyPrompt("CRIT", "CASE")
	assert.Equal(t, constants.OpClassifyCase, p.Operation)
	require.Len(t, p.Messages, 1)
	user := p.UserText()
	assert.Contains(t, user, "入排标准：\nCRIT\n")
	assert.Contains(t, user, "患者病例：\nCASE\n")
	assert.Less(t, strings.Index(user, "1. 符合的条目"), strings.Index(user, "2. 不符合的条目"))
	assert.Less(t, strings.Index(user, "2. 不符合的条目"), strings.Index(user, "3. 总体结论"))
}

func TestPromptsAreDeterministic(t *testing.T) {
	assert.Equal(t, BuildClassifyPrompt("a", "b"), BuildClassifyPrompt("a", "b"))
	assert.Equal(t, BuildOrganizePrompt("x"), BuildOrganizePrompt("x"))
	assert.Equal(t, BuildExtractionPrompt("y"), BuildExtractionPrompt("y"))
}

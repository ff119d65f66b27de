package llm

import (
	"strings"

	"github.com/joseph-ayodele/trial-screener/constants"
)

const systemPrompt = "you are a helpful assistant"

// BuildExtractionPrompt asks the model to copy the Inclusion Criteria and
// Exclusion Criteria sections out of a protocol verbatim.
func BuildExtractionPrompt(raw string) Prompt {
	return Prompt{
		Operation: constants.OpExtractCriteria,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: "请从以下文本中具体的和严谨的提取方案中Inclusion Criteria和Exclusion Criteria两部分原文，不要加入任何新内容：\n" + raw},
		},
	}
}

// BuildOrganizePrompt asks the model to restructure a raw case into blood
// biochemistry, urinalysis, coagulation and complete blood count sections,
// plus a separate list of other trial-relevant facts.
func BuildOrganizePrompt(rawCase string) Prompt {
	return Prompt{
		Operation: constants.OpOrganizeCase,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: "将文本整理成患者病例，至少包含四部分分别是：血液生化指标/尿检/凝血检查/血常规，如有其他涉及到临床研究入排的信息，单独列举出来。\n\n" + rawCase},
		},
	}
}

// BuildClassifyPrompt expects both texts to be already length-guarded.
func BuildClassifyPrompt(criteria, caseText string) Prompt {
	var b strings.Builder
	b.WriteString("请分析以下患者病例是否符合入排标准，并在病例中标注符合和不符合的条目：\n\n")
	b.WriteString("入排标准：\n")
	b.WriteString(criteria)
	b.WriteString("\n\n患者病例：\n")
	b.WriteString(caseText)
	b.WriteString("\n\n请按以下格式输出：\n")
	b.WriteString("1. 符合的条目：(在原文中标注并解释)\n")
	b.WriteString("2. 不符合的条目：(在原文中标注并解释)\n")
	b.WriteString("3. 总体结论：\n")
	return Prompt{
		Operation: constants.OpClassifyCase,
		Messages:  []Message{{Role: RoleUser, Content: b.String()}},
	}
}

// UserText returns the concatenated user content of p.
func (p Prompt) UserText() string {
	var parts []string
	for _, m := range p.Messages {
		if m.Role == RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

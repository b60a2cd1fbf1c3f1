package classify

import (
	"strconv"
	"strings"
)

// SystemPrompt is the fixed system message sent with every request.
const SystemPrompt = "你是一个专业的网页标签分类助手。你需要根据网页标题对标签页进行智能分组。"

// ExistingGroup is a tab group offered to the model as a routing target.
type ExistingGroup struct {
	Title        string   `json:"title"`
	MemberTitles []string `json:"member_titles"`
}

const promptIntro = "请根据以下网页标题对标签页进行智能分组。相同类型或主题的网页应该归为一组。\n\n" +
	"待分组的标签页标题列表（索引从0开始）：\n"

const promptExisting = "已存在的分组（如果新标签页属于某个已有分组，请将其归入该分组）：\n"

const promptFormat = `请返回JSON格式的结果，格式如下：
{
  "newGroups": {
    "分组名称1": [标签索引1, 标签索引2, ...],
    "分组名称2": [标签索引3, 标签索引4, ...]
  },
  "existingGroups": {
    "已有分组名称": [标签索引1, 标签索引2, ...]
  }
}

规则：
1. 如果标签页可以归入已有分组，请将其放在"existingGroups"中对应的分组下
2. 如果标签页无法归入已有分组，请创建新分组，放在"newGroups"中
3. 分组名称应该简洁明了，能够概括该组标签的主题（2-6个中文字符）
4. 每个分组至少包含1个标签页
5. 所有待分组的标签页都必须被分配到一个分组中
6. 只返回JSON，不要包含其他文字说明

请开始分析并返回JSON结果：`

// BuildPrompt renders the user message for one classification call.
// Indices in the tab list are the positions in tabTitles.
func BuildPrompt(tabTitles []string, existing []ExistingGroup) string {
	var b strings.Builder
	b.WriteString(promptIntro)
	for i, title := range tabTitles {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(title)
	}
	b.WriteString("\n\n")

	if len(existing) > 0 {
		b.WriteString(promptExisting)
		for i, g := range existing {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(`分组"`)
			b.WriteString(g.Title)
			b.WriteString(`"包含的标签：`)
			b.WriteByte('\n')
			for j, t := range g.MemberTitles {
				if j > 0 {
					b.WriteByte('\n')
				}
				b.WriteString("  - ")
				b.WriteString(t)
			}
		}
		b.WriteString("\n\n")
	}

	b.WriteString(promptFormat)
	return b.String()
}

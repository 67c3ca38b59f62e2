package workspace

import (
	"fmt"
	"strings"

	"github.com/nongjianweihao/share-car/internal/card"
)

// ValidateDraft lists the problems that block saving c, in display order.
// An empty result means the draft can be saved.
func ValidateDraft(c card.Card) []string {
	var problems []string
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "标题不能为空")
	}
	if len(c.Blocks) == 0 {
		problems = append(problems, "请至少添加一个内容块")
	}
	for i, b := range c.Blocks {
		n := i + 1
		switch v := b.(type) {
		case card.TextBlock:
			if strings.TrimSpace(v.Text) == "" {
				problems = append(problems, fmt.Sprintf("第 %d 个文本块内容不能为空", n))
			}
		case card.ListBlock:
			if len(v.Items) == 0 {
				problems = append(problems, fmt.Sprintf("第 %d 个列表块至少包含一个要点", n))
			}
		case card.QuoteBlock:
			if strings.TrimSpace(v.Quote) == "" {
				problems = append(problems, fmt.Sprintf("第 %d 个引用块内容不能为空", n))
			}
		case card.MetricBlock:
			if strings.TrimSpace(v.Label) == "" {
				problems = append(problems, fmt.Sprintf("第 %d 个指标块需要填写名称", n))
			}
		}
	}
	return problems
}

// DraftError carries every validation problem of a rejected save.
type DraftError struct {
	Problems []string
}

func (e DraftError) Error() string {
	return "draft is invalid: " + strings.Join(e.Problems, "; ")
}

// Unwrap lets callers treat a DraftError as a card.ValidationError.
func (e DraftError) Unwrap() error {
	return card.NewValidationError("draft", strings.Join(e.Problems, "; "))
}

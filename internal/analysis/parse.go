package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

var errIncomplete = errors.New("response has neither summary nor impact_level")

// text 接受字符串/数字/布尔/null。
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(strings.TrimSpace(string(b)))
	return nil
}

// stringList 接受字符串、任意元素数组或 null，元素统一转换为字符串。
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] != '[' {
		var t text
		if err := t.UnmarshalJSON(b); err != nil {
			return err
		}
		if s := strings.TrimSpace(string(t)); s != "" {
			*l = stringList{s}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(stringList, 0, len(raw))
	for _, r := range raw {
		var t text
		if err := t.UnmarshalJSON(r); err != nil {
			return err
		}
		if s := strings.TrimSpace(string(t)); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

type rawAnalysis struct {
	Summary          *text      `json:"summary"`
	ImpactLevel      *text      `json:"impact_level"`
	KeyChanges       stringList `json:"key_changes"`
	ActionItems      stringList `json:"action_items"`
	AffectedServices stringList `json:"affected_services"`
	BreakingChanges  stringList `json:"breaking_changes"`
	SecurityUpdates  stringList `json:"security_updates"`
	Deprecations     stringList `json:"deprecations"`
	NewFeatures      stringList `json:"new_features"`
	Categories       stringList `json:"categories"`
	PlatformStatus   text       `json:"platform_status"`
}

// parseResponse 从补全文本中提取 JSON 对象（容忍 ``` 代码块与前后说明文字）。
func parseResponse(s string) (model.Analysis, error) {
	obj, err := extractJSON(s)
	if err != nil {
		return model.Analysis{}, err
	}
	var r rawAnalysis
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return model.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if r.Summary == nil && r.ImpactLevel == nil {
		return model.Analysis{}, errIncomplete
	}
	a := model.Analysis{
		KeyChanges:       r.KeyChanges,
		ActionItems:      r.ActionItems,
		AffectedServices: r.AffectedServices,
		BreakingChanges:  r.BreakingChanges,
		SecurityUpdates:  r.SecurityUpdates,
		Deprecations:     r.Deprecations,
		NewFeatures:      r.NewFeatures,
		Categories:       r.Categories,
		PlatformStatus:   string(r.PlatformStatus),
	}
	if r.Summary != nil {
		a.Summary = string(*r.Summary)
	}
	if r.ImpactLevel != nil {
		a.ImpactLevel = string(*r.ImpactLevel)
	}
	return a, nil
}

func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	return s[start : end+1], nil
}

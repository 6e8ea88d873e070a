package utils

import "strings"

// Label 是附在预测结果上的解释信息，例如命中的类别表版本、模型能力、概率来源。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // validate / align / inference / confidence / feast
}

// MergeLabel 合并同名 Label。
// Value 以 '|' 累积，Source 以 ',' 累积；已出现过的片段不重复追加。
func MergeLabel(existing, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, "|"),
		Source: appendPart(existing.Source, incoming.Source, ","),
	}
}

func appendPart(list, part, sep string) string {
	switch {
	case part == "":
		return list
	case list == "":
		return part
	}
	for _, p := range strings.Split(list, sep) {
		if p == part {
			return list
		}
	}
	return list + sep + part
}

package feast

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/survkit/core"
)

// Enricher 在进入 Pipeline 之前，用在线特征补全记录中缺失的字段。
//
// 只填充记录里没有的字段，调用方提供的值始终优先；
// 记录里没有实体键（例如 passenger_id）时原样返回。
type Enricher struct {
	client    Client
	entityKey string
	fields    map[string]string // 记录字段名 -> Feast 特征引用
}

// NewEnricher 创建补全器
//
// 示例：
//
//	e := feast.NewEnricher(client, "passenger_id", map[string]string{
//	    "Fare":           "passenger_stats:fare",
//	    "Cabin_Assigned": "passenger_stats:cabin_assigned",
//	})
func NewEnricher(client Client, entityKey string, fields map[string]string) (*Enricher, error) {
	if client == nil {
		return nil, fmt.Errorf("feast enricher: nil client")
	}
	if entityKey == "" {
		return nil, fmt.Errorf("feast enricher: entity key is required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("feast enricher: no fields mapped")
	}
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return &Enricher{client: client, entityKey: entityKey, fields: m}, nil
}

// Enrich 返回补全后的新记录；原记录不被修改。
// 返回值 filled 列出本次补上的字段（排序）。
func (e *Enricher) Enrich(ctx context.Context, rec core.Record) (out core.Record, filled []string, err error) {
	entity, ok := rec[e.entityKey]
	if !ok || entity.IsZero() {
		return rec, nil, nil
	}

	var refs []string
	wanted := make(map[string]string)
	for field, ref := range e.fields {
		if rec.Has(field) {
			continue
		}
		refs = append(refs, ref)
		wanted[ref] = field
	}
	if len(refs) == 0 {
		return rec, nil, nil
	}
	sort.Strings(refs)

	resp, err := e.client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   refs,
		EntityRows: []map[string]any{{e.entityKey: entity.Native()}},
	})
	if err != nil {
		return rec, nil, err
	}
	if len(resp.FeatureVectors) != 1 {
		return rec, nil, fmt.Errorf("feast enricher: expected 1 feature vector, got %d", len(resp.FeatureVectors))
	}

	out = rec.Clone()
	for ref, raw := range resp.FeatureVectors[0].Values {
		field, ok := wanted[ref]
		if !ok || raw == nil {
			continue
		}
		v, err := core.ValueOf(raw)
		if err != nil {
			return rec, nil, fmt.Errorf("feast enricher: %s: %w", ref, err)
		}
		out[field] = v
		filled = append(filled, field)
	}
	sort.Strings(filled)
	return out, filled, nil
}

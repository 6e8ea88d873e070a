// Package predictor 把 validate → align → infer → score 组装成对外的预测入口，
// 并负责可选的在线特征补全、历史写入、日志与指标。
package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/survkit/category"
	"github.com/rushteam/survkit/confidence"
	"github.com/rushteam/survkit/core"
	"github.com/rushteam/survkit/feature"
	"github.com/rushteam/survkit/inference"
	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/metrics"
	"github.com/rushteam/survkit/model"
	"github.com/rushteam/survkit/pipeline"
	"github.com/rushteam/survkit/pkg/utils"
)

// Enricher 在校验前补全记录缺失字段（例如 feast.Enricher）
type Enricher interface {
	Enrich(ctx context.Context, rec core.Record) (core.Record, []string, error)
}

// Predictor 是线程安全的预测入口；构建后只读。
type Predictor struct {
	artifact *model.Artifact
	pipeline *pipeline.Pipeline

	history  core.HistoryStore
	enricher Enricher

	batchConcurrency int
	now              func() time.Time
}

// Option 配置 Predictor
type Option func(*Predictor)

// WithHistory 成功的预测写入历史存储；写入失败只记日志，不影响返回。
func WithHistory(s core.HistoryStore) Option {
	return func(p *Predictor) { p.history = s }
}

// WithEnricher 在校验前用在线特征补全记录
func WithEnricher(e Enricher) Option {
	return func(p *Predictor) { p.enricher = e }
}

// WithBatchConcurrency 批量预测的最大并发数，<=0 表示不限制
func WithBatchConcurrency(n int) Option {
	return func(p *Predictor) { p.batchConcurrency = n }
}

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) { p.now = now }
}

// New 组装四个阶段
func New(
	artifact *model.Artifact,
	validator *category.Validator,
	aligner *feature.Aligner,
	scorer *confidence.Scorer,
	opts ...Option,
) (*Predictor, error) {
	if artifact == nil || validator == nil || aligner == nil || scorer == nil {
		return nil, fmt.Errorf("predictor: artifact, validator, aligner and scorer are required")
	}
	engine, err := inference.NewEngine(artifact)
	if err != nil {
		return nil, err
	}
	pl, err := pipeline.New(
		&category.Node{Validator: validator},
		&feature.Node{Aligner: aligner, Contract: artifact},
		&inference.Node{Engine: engine},
		&confidence.Node{Scorer: scorer},
	)
	if err != nil {
		return nil, err
	}
	p := &Predictor{
		artifact:         artifact,
		pipeline:         pl,
		batchConcurrency: 8,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	logging.Info().
		Str("model", artifact.Name()).
		Str("version", artifact.Version()).
		Str("capability", artifact.Capability().String()).
		Strs("expected_columns", artifact.ExpectedColumns()).
		Msg("predictor ready")
	return p, nil
}

// Artifact 返回加载的模型制品
func (p *Predictor) Artifact() *model.Artifact { return p.artifact }

// History 返回历史存储，未配置时为 nil
func (p *Predictor) History() core.HistoryStore { return p.history }

// Predict 对一条记录执行完整预测。subject 用于生成说明文案，可为空。
//
// 失败时返回的错误可用 errors.As 取到 *core.ValidationError /
// *core.MissingFeatureError / *core.FeatureTypeError / *core.InferenceError。
func (p *Predictor) Predict(ctx context.Context, subject string, rec core.Record) (*core.PredictionResult, error) {
	start := p.now()

	var filled []string
	if p.enricher != nil {
		enriched, fields, err := p.enricher.Enrich(ctx, rec)
		switch {
		case err != nil:
			metrics.RecordEnrichment("error")
			logging.Ctx(ctx).Warn().Err(err).Msg("online feature enrichment failed")
		case len(fields) == 0:
			metrics.RecordEnrichment("miss")
		default:
			metrics.RecordEnrichment("ok")
			rec, filled = enriched, fields
		}
	}

	pctx := core.NewPredictContext(subject, rec)
	for _, f := range filled {
		pctx.PutLabel("enriched", utils.Label{Value: f, Source: "feast"})
	}
	if err := p.pipeline.Run(ctx, pctx); err != nil {
		stage := "internal"
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = string(se.Kind)
		}
		metrics.RecordPipelineError(stage)
		var ie *core.InferenceError
		if errors.As(err, &ie) {
			logging.Ctx(ctx).Error().Err(err).Str("model", p.artifact.Name()).Msg("inference failed")
		} else {
			logging.Ctx(ctx).Debug().Err(err).Str("stage", stage).Msg("prediction rejected")
		}
		return nil, err
	}

	result, err := pctx.Result()
	if err != nil {
		metrics.RecordPipelineError("internal")
		return nil, err
	}
	result.ID = uuid.NewString()
	metrics.RecordPrediction(result.Tier.String(), string(result.Source), p.now().Sub(start))
	if result.Degraded {
		logging.Ctx(ctx).Warn().Str("model", p.artifact.Name()).Msg("degenerate probability reported")
	}

	p.save(ctx, subject, rec, result)
	return result, nil
}

func (p *Predictor) save(ctx context.Context, subject string, rec core.Record, result *core.PredictionResult) {
	if p.history == nil {
		return
	}
	entry := &core.HistoryEntry{
		ID:        result.ID,
		Subject:   subject,
		Record:    rec,
		Result:    result,
		CreatedAt: p.now().UTC(),
	}
	err := p.history.Save(ctx, entry)
	metrics.RecordHistoryWrite(p.history.Name(), err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("backend", p.history.Name()).Msg("history save failed")
	}
}

// BatchItem 是批量预测的单条输入
type BatchItem struct {
	Subject string
	Record  core.Record
}

// BatchResult 与输入一一对应；Err 非空时 Result 为 nil。
type BatchResult struct {
	Result *core.PredictionResult
	Err    error
}

// PredictBatch 并发执行多条预测，单条失败不影响其他条目，结果保持输入顺序。
// 只有 ctx 被取消时才返回错误。
func (p *Predictor) PredictBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	out := make([]BatchResult, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	if p.batchConcurrency > 0 {
		eg.SetLimit(p.batchConcurrency)
	}
	for i, it := range items {
		i, it := i, it
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := p.Predict(egCtx, it.Subject, it.Record)
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/rushteam/survkit/category"
	"github.com/rushteam/survkit/confidence"
	"github.com/rushteam/survkit/config"
	"github.com/rushteam/survkit/feast"
	"github.com/rushteam/survkit/feature"
	"github.com/rushteam/survkit/logging"
	"github.com/rushteam/survkit/model"
	"github.com/rushteam/survkit/predictor"
	"github.com/rushteam/survkit/store"
)

// app 持有按配置组装好的组件；close 释放历史存储和 Feast 连接
type app struct {
	predictor *predictor.Predictor
	closers   []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logging.Warn().Err(err).Msg("close resource")
		}
	}
}

func loadArtifact(ctx context.Context, c *config.Config) (*model.Artifact, error) {
	if c.Model.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Model.LoadTimeout)
		defer cancel()
	}
	a, err := model.Load(ctx, c.Model.Source)
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("source", c.Model.Source).
		Str("model", a.Name()).
		Str("capability", a.Capability().String()).
		Msg("model loaded")
	return a, nil
}

// buildApp 加载模型和各阶段配置。withHistory 为 false 时不打开历史存储（命令行单次预测）。
func buildApp(ctx context.Context, c *config.Config, withHistory bool) (*app, error) {
	artifact, err := loadArtifact(ctx, c)
	if err != nil {
		return nil, err
	}

	tables := category.DefaultTables()
	if c.Category.Tables != "" {
		if tables, err = category.LoadTables(c.Category.Tables); err != nil {
			return nil, fmt.Errorf("category tables: %w", err)
		}
	}

	table := confidence.DefaultTable()
	if c.Confidence.Thresholds != "" {
		if table, err = confidence.LoadTable(c.Confidence.Thresholds); err != nil {
			return nil, fmt.Errorf("confidence thresholds: %w", err)
		}
	}
	scorer, err := confidence.NewScorer(table)
	if err != nil {
		return nil, err
	}

	derived, err := config.BuildFeatures(c.Features)
	if err != nil {
		return nil, err
	}

	a := &app{}
	opts := []predictor.Option{predictor.WithBatchConcurrency(c.Batch.Concurrency)}

	if withHistory {
		hist, err := store.Open(ctx, c.Store)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		if hist != nil {
			opts = append(opts, predictor.WithHistory(hist))
			a.closers = append(a.closers, hist.Close)
		}
	}

	if c.Feast.Enabled() {
		clientOpts := []feast.ClientOption{feast.WithTimeout(c.Feast.Timeout)}
		if c.Feast.Token != "" {
			clientOpts = append(clientOpts, feast.WithAuth(&feast.AuthConfig{Type: "static", Token: c.Feast.Token}))
		}
		client, err := feast.NewClient(c.Feast.Endpoint, c.Feast.Project, clientOpts...)
		if err != nil {
			a.close()
			return nil, err
		}
		client = feast.NewCachedClient(client, c.Feast.CacheSize, c.Feast.CacheTTL)
		a.closers = append(a.closers, client.Close)
		enricher, err := feast.NewEnricher(client, c.Feast.EntityKey, c.Feast.Fields)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, predictor.WithEnricher(enricher))
	}

	p, err := predictor.New(artifact, category.NewValidator(tables), feature.NewAligner(derived...), scorer, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.predictor = p
	return a, nil
}

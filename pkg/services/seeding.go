package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
	sqlcheck "github.com/schemalink/schemalink-engine/pkg/sql"
)

// Seed file shapes. The file mirrors the catalog's nesting so a schema can
// be described in one document.

type SeedFile struct {
	Datasources []SeedDatasource `yaml:"datasources"`
	Synonyms    []SeedSynonym    `yaml:"synonyms"`
}

type SeedDatasource struct {
	Name             string             `yaml:"name"`
	Slug             string             `yaml:"slug"`
	Engine           string             `yaml:"engine"`
	Description      string             `yaml:"description"`
	ContextSignature string             `yaml:"context_signature"`
	Tables           []SeedTable        `yaml:"tables"`
	Edges            []SeedEdge         `yaml:"edges"`
	Metrics          []SeedMetric       `yaml:"metrics"`
	ExampleQueries   []SeedExampleQuery `yaml:"example_queries"`
}

type SeedTable struct {
	Slug         string       `yaml:"slug"`
	PhysicalName string       `yaml:"physical_name"`
	SemanticName string       `yaml:"semantic_name"`
	Description  string       `yaml:"description"`
	DDLContext   string       `yaml:"ddl_context"`
	Columns      []SeedColumn `yaml:"columns"`
}

type SeedColumn struct {
	Slug         string      `yaml:"slug"`
	Name         string      `yaml:"name"`
	SemanticName string      `yaml:"semantic_name"`
	DataType     string      `yaml:"data_type"`
	IsPrimaryKey bool        `yaml:"is_primary_key"`
	Description  string      `yaml:"description"`
	ContextNote  string      `yaml:"context_note"`
	Rules        []string    `yaml:"rules"`
	Values       []SeedValue `yaml:"values"`
}

type SeedValue struct {
	Raw   string `yaml:"raw"`
	Label string `yaml:"label"`
}

// SeedEdge references its endpoints as "table_slug.column_slug".
type SeedEdge struct {
	Source       string `yaml:"source"`
	Target       string `yaml:"target"`
	Relationship string `yaml:"relationship"`
	Inferred     bool   `yaml:"inferred"`
	Description  string `yaml:"description"`
	ContextNote  string `yaml:"context_note"`
}

type SeedMetric struct {
	Slug            string   `yaml:"slug"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	CalculationSQL  string   `yaml:"calculation_sql"`
	FilterCondition string   `yaml:"filter_condition"`
	RequiredTables  []string `yaml:"required_tables"`
}

type SeedExampleQuery struct {
	Slug       string `yaml:"slug"`
	Prompt     string `yaml:"prompt"`
	SQL        string `yaml:"sql"`
	Complexity int    `yaml:"complexity"`
	Verified   bool   `yaml:"verified"`
}

// SeedSynonym targets are datasource-qualified slug paths: "shop/orders"
// (table), "shop/orders/status" (column), "shop/net_revenue" with kind
// METRIC, or "shop/orders/status/pending" with kind VALUE.
type SeedSynonym struct {
	Slug       string `yaml:"slug"`
	Term       string `yaml:"term"`
	TargetKind string `yaml:"target_kind"`
	Target     string `yaml:"target"`
}

// SeedService loads a catalog description into the store and backfills
// embeddings for everything it created.
type SeedService interface {
	SeedFromFile(ctx context.Context, path string) error
}

type seedService struct {
	cache       EmbeddingCache
	datasources repositories.DatasourceRepository
	tables      repositories.TableRepository
	columns     repositories.ColumnRepository
	edges       repositories.EdgeRepository
	metrics     repositories.MetricRepository
	synonyms    repositories.SynonymRepository
	rules       repositories.ContextRuleRepository
	values      repositories.CategoricalValueRepository
	examples    repositories.ExampleQueryRepository
	// embedConcurrency bounds the parallel embedding backfill.
	embedConcurrency int
	logger           *zap.Logger
}

// NewSeedService creates a SeedService.
func NewSeedService(
	cache EmbeddingCache,
	datasources repositories.DatasourceRepository,
	tables repositories.TableRepository,
	columns repositories.ColumnRepository,
	edges repositories.EdgeRepository,
	metrics repositories.MetricRepository,
	synonyms repositories.SynonymRepository,
	rules repositories.ContextRuleRepository,
	values repositories.CategoricalValueRepository,
	examples repositories.ExampleQueryRepository,
	embedConcurrency int,
	logger *zap.Logger,
) SeedService {
	if embedConcurrency < 1 {
		embedConcurrency = 4
	}
	return &seedService{
		cache:            cache,
		datasources:      datasources,
		tables:           tables,
		columns:          columns,
		edges:            edges,
		metrics:          metrics,
		synonyms:         synonyms,
		rules:            rules,
		values:           values,
		examples:         examples,
		embedConcurrency: embedConcurrency,
		logger:           logger.Named("seeding"),
	}
}

var _ SeedService = (*seedService)(nil)

func (s *seedService) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	var searchables []models.Searchable

	// refs maps slug paths to created entities for edge/metric/synonym
	// resolution. Keys: "ds", "ds/table", "ds/table/column",
	// "ds/table/column/value_raw", "metric:ds/slug".
	tableIDs := map[string]uuid.UUID{}
	columnIDs := map[string]uuid.UUID{}
	valueIDs := map[string]uuid.UUID{}
	metricIDs := map[string]uuid.UUID{}

	for _, sds := range file.Datasources {
		ds := &models.Datasource{
			Name:             sds.Name,
			Slug:             sds.Slug,
			Description:      sds.Description,
			Engine:           models.SQLEngineType(sds.Engine),
			ContextSignature: sds.ContextSignature,
		}
		if err := s.datasources.Create(ctx, ds); err != nil {
			return err
		}
		searchables = append(searchables, ds)

		for _, st := range sds.Tables {
			table := &models.Table{
				DatasourceID: ds.ID,
				Slug:         st.Slug,
				PhysicalName: st.PhysicalName,
				SemanticName: st.SemanticName,
				Description:  st.Description,
				DDLContext:   st.DDLContext,
			}
			if err := s.tables.Create(ctx, table); err != nil {
				return err
			}
			tableIDs[sds.Slug+"/"+st.Slug] = table.ID
			searchables = append(searchables, table)

			for _, sc := range st.Columns {
				column := &models.Column{
					TableID:      table.ID,
					Slug:         sc.Slug,
					Name:         sc.Name,
					SemanticName: sc.SemanticName,
					DataType:     sc.DataType,
					IsPrimaryKey: sc.IsPrimaryKey,
					Description:  sc.Description,
					ContextNote:  sc.ContextNote,
				}
				if err := s.columns.Create(ctx, column); err != nil {
					return err
				}
				columnIDs[sds.Slug+"/"+st.Slug+"/"+sc.Slug] = column.ID
				searchables = append(searchables, column)

				for i, text := range sc.Rules {
					rule := &models.ContextRule{
						ColumnID: column.ID,
						Slug:     fmt.Sprintf("%s-rule-%d", sc.Slug, i+1),
						RuleText: text,
					}
					if err := s.rules.Create(ctx, rule); err != nil {
						return err
					}
					searchables = append(searchables, rule)
				}

				for _, sv := range sc.Values {
					value := &models.CategoricalValue{
						ColumnID:   column.ID,
						Slug:       sv.Raw,
						ValueRaw:   sv.Raw,
						ValueLabel: sv.Label,
					}
					if err := s.values.Create(ctx, value); err != nil {
						return err
					}
					valueIDs[sds.Slug+"/"+st.Slug+"/"+sc.Slug+"/"+sv.Raw] = value.ID
				}
			}
		}

		for _, se := range sds.Edges {
			sourceID, err := resolveColumnRef(columnIDs, sds.Slug, se.Source)
			if err != nil {
				return err
			}
			targetID, err := resolveColumnRef(columnIDs, sds.Slug, se.Target)
			if err != nil {
				return err
			}
			edge := &models.SchemaEdge{
				SourceColumnID:   sourceID,
				TargetColumnID:   targetID,
				RelationshipType: models.RelationshipType(se.Relationship),
				Inferred:         se.Inferred,
				Description:      se.Description,
				ContextNote:      se.ContextNote,
			}
			if err := s.edges.Create(ctx, edge); err != nil {
				return err
			}
			searchables = append(searchables, edge)
		}

		for _, sm := range sds.Metrics {
			required := make([]uuid.UUID, 0, len(sm.RequiredTables))
			for _, slug := range sm.RequiredTables {
				id, ok := tableIDs[sds.Slug+"/"+slug]
				if !ok {
					return fmt.Errorf("%w: metric %q requires unknown table %q", apperrors.ErrInvalidArgument, sm.Slug, slug)
				}
				required = append(required, id)
			}
			metric := &models.Metric{
				DatasourceID:    ds.ID,
				Slug:            sm.Slug,
				Name:            sm.Name,
				Description:     sm.Description,
				CalculationSQL:  sm.CalculationSQL,
				RequiredTables:  required,
				FilterCondition: sm.FilterCondition,
			}
			if err := s.metrics.Create(ctx, metric); err != nil {
				return err
			}
			metricIDs[sds.Slug+"/"+sm.Slug] = metric.ID
			searchables = append(searchables, metric)
		}

		for _, seq := range sds.ExampleQueries {
			// A prompt is free text headed for retrieval and, eventually,
			// an LLM prompt; reject anything shaped like an injection.
			if result := sqlcheck.CheckFieldForInjection("prompt", seq.Prompt); result != nil {
				return fmt.Errorf("%w: example query %q prompt failed injection check (fingerprint %s)",
					apperrors.ErrInvalidArgument, seq.Slug, result.Fingerprint)
			}
			eq := &models.ExampleQuery{
				DatasourceID:    ds.ID,
				Slug:            seq.Slug,
				PromptText:      seq.Prompt,
				SQLQuery:        seq.SQL,
				ComplexityScore: seq.Complexity,
				Verified:        seq.Verified,
			}
			if err := s.examples.Create(ctx, eq); err != nil {
				return err
			}
			searchables = append(searchables, eq)
		}
	}

	for _, ss := range file.Synonyms {
		targetKind := models.SynonymTargetKind(strings.ToUpper(ss.TargetKind))
		targetID, err := resolveSynonymTarget(targetKind, ss.Target, tableIDs, columnIDs, valueIDs, metricIDs)
		if err != nil {
			return err
		}
		synonym := &models.Synonym{
			Slug:       ss.Slug,
			Term:       ss.Term,
			TargetKind: targetKind,
			TargetID:   targetID,
		}
		if err := s.synonyms.Create(ctx, synonym); err != nil {
			return err
		}
		searchables = append(searchables, synonym)
	}

	return s.backfillEmbeddings(ctx, searchables)
}

// seedEmbedChunk is how many entities each backfill task hands to the batch
// embedding call, so a large catalog spreads across the worker limit.
const seedEmbedChunk = 32

// backfillEmbeddings computes embeddings for freshly created entities, a
// chunk per batch generator request, with bounded parallelism across chunks.
// A failing chunk is logged and skipped: its entities stay lexically
// searchable and the next write attempt retries.
func (s *seedService) backfillEmbeddings(ctx context.Context, searchables []models.Searchable) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.embedConcurrency)

	for start := 0; start < len(searchables); start += seedEmbedChunk {
		chunk := searchables[start:min(start+seedEmbedChunk, len(searchables))]
		group.Go(func() error {
			if _, err := s.cache.EnsureEmbeddings(gctx, chunk); err != nil {
				s.logger.Warn("seed embedding batch failed",
					zap.Int("entities", len(chunk)),
					zap.Error(err))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	s.logger.Info("seed complete", zap.Int("entities", len(searchables)))
	return nil
}

// resolveColumnRef resolves "table_slug.column_slug" within a datasource.
func resolveColumnRef(columnIDs map[string]uuid.UUID, dsSlug, ref string) (uuid.UUID, error) {
	parts := strings.Split(ref, ".")
	if len(parts) != 2 {
		return uuid.Nil, fmt.Errorf("%w: edge endpoint %q must be table.column", apperrors.ErrInvalidArgument, ref)
	}
	id, ok := columnIDs[dsSlug+"/"+parts[0]+"/"+parts[1]]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: edge endpoint %q not found in datasource %q", apperrors.ErrNotFound, ref, dsSlug)
	}
	return id, nil
}

// resolveSynonymTarget resolves a synonym's slug-path target against the
// entities created earlier in the same seed run. Paths are datasource-
// qualified: "shop/orders", "shop/orders/status", "shop/net_revenue",
// "shop/orders/status/pending".
func resolveSynonymTarget(
	kind models.SynonymTargetKind,
	target string,
	tableIDs, columnIDs, valueIDs, metricIDs map[string]uuid.UUID,
) (uuid.UUID, error) {
	var id uuid.UUID
	var ok bool
	switch kind {
	case models.TargetTable:
		id, ok = tableIDs[target]
	case models.TargetColumn:
		id, ok = columnIDs[target]
	case models.TargetValue:
		id, ok = valueIDs[target]
	case models.TargetMetric:
		id, ok = metricIDs[target]
	default:
		return uuid.Nil, fmt.Errorf("%w: unknown synonym target kind %q", apperrors.ErrInvalidArgument, kind)
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: synonym target %q (%s)", apperrors.ErrNotFound, target, kind)
	}
	return id, nil
}

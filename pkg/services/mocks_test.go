package services

// In-memory fakes shared by the service tests. Storage slices feed the
// lookup and listing paths; the search branches are programmed per test via
// the vector/lexical fields.

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// stubEmbedder is a QueryEmbedder returning a fixed vector.
type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.vec != nil {
		return s.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeDatasourceRepo struct {
	items       []*models.Datasource
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeDatasourceRepo) Create(ctx context.Context, ds *models.Datasource) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	f.items = append(f.items, ds)
	return nil
}

func (f *fakeDatasourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	for _, ds := range f.items {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeDatasourceRepo) GetBySlug(ctx context.Context, slug string) (*models.Datasource, error) {
	for _, ds := range f.items {
		if ds.Slug == slug {
			return ds, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeDatasourceRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Datasource, error) {
	var result []*models.Datasource
	for _, ds := range f.items {
		for _, id := range ids {
			if ds.ID == id {
				result = append(result, ds)
			}
		}
	}
	return result, nil
}

func (f *fakeDatasourceRepo) List(ctx context.Context, limit, offset int) ([]*models.Datasource, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeDatasourceRepo) Count(ctx context.Context) (int, error) {
	return len(f.items), nil
}

func (f *fakeDatasourceRepo) VectorSearch(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeDatasourceRepo) LexicalSearch(ctx context.Context, query string, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeDatasourceRepo) CountLexicalMatches(ctx context.Context, query string) (int, error) {
	return len(f.lexical), f.lexicalErr
}

func (f *fakeDatasourceRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, ds := range f.items {
		if ds.ID == id {
			ds.Embedding = embedding
			ds.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeTableRepo struct {
	items       []*models.Table
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeTableRepo) Create(ctx context.Context, table *models.Table) error {
	if table.ID == uuid.Nil {
		table.ID = uuid.New()
	}
	f.items = append(f.items, table)
	return nil
}

func (f *fakeTableRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	for _, t := range f.items {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeTableRepo) GetBySlugOrPhysicalName(ctx context.Context, datasourceID uuid.UUID, ref string) (*models.Table, error) {
	for _, t := range f.items {
		if t.DatasourceID == datasourceID && (t.Slug == ref || t.PhysicalName == ref) {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeTableRepo) FindBySlugOrPhysicalName(ctx context.Context, ref string) ([]*models.Table, error) {
	var result []*models.Table
	for _, t := range f.items {
		if t.Slug == ref || t.PhysicalName == ref {
			result = append(result, t)
		}
	}
	return result, nil
}

func (f *fakeTableRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Table, error) {
	var result []*models.Table
	for _, t := range f.items {
		for _, id := range ids {
			if t.ID == id {
				result = append(result, t)
			}
		}
	}
	return result, nil
}

func (f *fakeTableRepo) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Table, error) {
	var result []*models.Table
	for _, t := range f.items {
		if t.DatasourceID == datasourceID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (f *fakeTableRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*models.Table, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeTableRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeTableRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeTableRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeTableRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, t := range f.items {
		if t.ID == id {
			t.Embedding = embedding
			t.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeColumnRepo struct {
	items       []*repositories.ColumnWithTable
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeColumnRepo) Create(ctx context.Context, column *models.Column) error {
	if column.ID == uuid.Nil {
		column.ID = uuid.New()
	}
	f.items = append(f.items, &repositories.ColumnWithTable{Column: *column})
	return nil
}

func (f *fakeColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	for _, c := range f.items {
		if c.ID == id {
			col := c.Column
			return &col, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeColumnRepo) GetBySlug(ctx context.Context, tableID uuid.UUID, slug string) (*models.Column, error) {
	for _, c := range f.items {
		if c.TableID == tableID && (c.Slug == slug || c.Name == slug) {
			col := c.Column
			return &col, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeColumnRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*repositories.ColumnWithTable, error) {
	var result []*repositories.ColumnWithTable
	for _, c := range f.items {
		for _, id := range ids {
			if c.ID == id {
				result = append(result, c)
			}
		}
	}
	return result, nil
}

func (f *fakeColumnRepo) ListByTableIDs(ctx context.Context, tableIDs []uuid.UUID) ([]*models.Column, error) {
	var result []*models.Column
	for _, c := range f.items {
		for _, id := range tableIDs {
			if c.TableID == id {
				col := c.Column
				result = append(result, &col)
			}
		}
	}
	return result, nil
}

func (f *fakeColumnRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*repositories.ColumnWithTable, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeColumnRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeColumnRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeColumnRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeColumnRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, c := range f.items {
		if c.ID == id {
			c.Embedding = embedding
			c.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeEdgeRepo struct {
	items       []*repositories.EdgeWithEndpoints
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeEdgeRepo) Create(ctx context.Context, edge *models.SchemaEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	f.items = append(f.items, &repositories.EdgeWithEndpoints{SchemaEdge: *edge})
	return nil
}

func (f *fakeEdgeRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*repositories.EdgeWithEndpoints, error) {
	var result []*repositories.EdgeWithEndpoints
	for _, e := range f.items {
		for _, id := range ids {
			if e.ID == id {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

func (f *fakeEdgeRepo) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*repositories.EdgeWithEndpoints, error) {
	var result []*repositories.EdgeWithEndpoints
	for _, e := range f.items {
		if e.DatasourceID == datasourceID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeEdgeRepo) ListAmongTables(ctx context.Context, tableIDs []uuid.UUID) ([]*repositories.EdgeWithEndpoints, error) {
	inSet := func(id uuid.UUID) bool {
		for _, t := range tableIDs {
			if t == id {
				return true
			}
		}
		return false
	}
	var result []*repositories.EdgeWithEndpoints
	for _, e := range f.items {
		if inSet(e.SourceTableID) && inSet(e.TargetTableID) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeEdgeRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*repositories.EdgeWithEndpoints, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeEdgeRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeEdgeRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeEdgeRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeEdgeRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, e := range f.items {
		if e.ID == id {
			e.Embedding = embedding
			e.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeMetricRepo struct {
	items       []*models.Metric
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeMetricRepo) Create(ctx context.Context, metric *models.Metric) error {
	if metric.ID == uuid.Nil {
		metric.ID = uuid.New()
	}
	f.items = append(f.items, metric)
	return nil
}

func (f *fakeMetricRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Metric, error) {
	for _, m := range f.items {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMetricRepo) GetBySlug(ctx context.Context, datasourceID uuid.UUID, slug string) (*models.Metric, error) {
	for _, m := range f.items {
		if m.DatasourceID == datasourceID && m.Slug == slug {
			return m, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeMetricRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Metric, error) {
	var result []*models.Metric
	for _, m := range f.items {
		for _, id := range ids {
			if m.ID == id {
				result = append(result, m)
			}
		}
	}
	return result, nil
}

func (f *fakeMetricRepo) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Metric, error) {
	var result []*models.Metric
	for _, m := range f.items {
		if m.DatasourceID == datasourceID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (f *fakeMetricRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*models.Metric, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeMetricRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeMetricRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeMetricRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeMetricRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, m := range f.items {
		if m.ID == id {
			m.Embedding = embedding
			m.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeSynonymRepo struct {
	items       []*models.Synonym
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeSynonymRepo) Create(ctx context.Context, synonym *models.Synonym) error {
	if synonym.ID == uuid.Nil {
		synonym.ID = uuid.New()
	}
	synonym.TermNormalized = models.NormalizeTerm(synonym.Term)
	f.items = append(f.items, synonym)
	return nil
}

func (f *fakeSynonymRepo) GetBySlug(ctx context.Context, slug string) (*models.Synonym, error) {
	for _, s := range f.items {
		if s.Slug == slug {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeSynonymRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Synonym, error) {
	var result []*models.Synonym
	for _, s := range f.items {
		for _, id := range ids {
			if s.ID == id {
				result = append(result, s)
			}
		}
	}
	return result, nil
}

func (f *fakeSynonymRepo) List(ctx context.Context, limit, offset int) ([]*models.Synonym, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeSynonymRepo) Count(ctx context.Context) (int, error) {
	return len(f.items), nil
}

func (f *fakeSynonymRepo) VectorSearch(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeSynonymRepo) LexicalSearch(ctx context.Context, query string, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeSynonymRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, s := range f.items {
		if s.ID == id {
			s.Embedding = embedding
			s.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeRuleRepo struct {
	items       []*repositories.RuleWithColumn
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *models.ContextRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	f.items = append(f.items, &repositories.RuleWithColumn{ContextRule: *rule})
	return nil
}

func (f *fakeRuleRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*repositories.RuleWithColumn, error) {
	var result []*repositories.RuleWithColumn
	for _, r := range f.items {
		for _, id := range ids {
			if r.ID == id {
				result = append(result, r)
			}
		}
	}
	return result, nil
}

func (f *fakeRuleRepo) ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.ContextRule, error) {
	var result []*models.ContextRule
	for _, r := range f.items {
		for _, id := range columnIDs {
			if r.ColumnID == id {
				rule := r.ContextRule
				result = append(result, &rule)
			}
		}
	}
	return result, nil
}

func (f *fakeRuleRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*repositories.RuleWithColumn, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeRuleRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeRuleRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeRuleRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeRuleRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, r := range f.items {
		if r.ID == id {
			r.Embedding = embedding
			r.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakeValueRepo struct {
	items      []*repositories.ValueWithColumn
	lexical    []repositories.RankedID
	lexicalErr error
}

func (f *fakeValueRepo) Create(ctx context.Context, value *models.CategoricalValue) error {
	if value.ID == uuid.Nil {
		value.ID = uuid.New()
	}
	f.items = append(f.items, &repositories.ValueWithColumn{CategoricalValue: *value})
	return nil
}

func (f *fakeValueRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*repositories.ValueWithColumn, error) {
	var result []*repositories.ValueWithColumn
	for _, v := range f.items {
		for _, id := range ids {
			if v.ID == id {
				result = append(result, v)
			}
		}
	}
	return result, nil
}

func (f *fakeValueRepo) ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.CategoricalValue, error) {
	var result []*models.CategoricalValue
	for _, v := range f.items {
		for _, id := range columnIDs {
			if v.ColumnID == id {
				value := v.CategoricalValue
				result = append(result, &value)
			}
		}
	}
	return result, nil
}

func (f *fakeValueRepo) List(ctx context.Context, scope repositories.SearchScope, limit, offset int) ([]*repositories.ValueWithColumn, error) {
	return pageSlice(f.items, limit, offset), nil
}

func (f *fakeValueRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeValueRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

type fakeExampleQueryRepo struct {
	items       []*models.ExampleQuery
	vector      []repositories.RankedID
	lexical     []repositories.RankedID
	vectorErr   error
	lexicalErr  error
	updateCalls int
}

func (f *fakeExampleQueryRepo) Create(ctx context.Context, eq *models.ExampleQuery) error {
	if eq.ID == uuid.Nil {
		eq.ID = uuid.New()
	}
	f.items = append(f.items, eq)
	return nil
}

func (f *fakeExampleQueryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ExampleQuery, error) {
	for _, eq := range f.items {
		if eq.ID == id {
			return eq, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeExampleQueryRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.ExampleQuery, error) {
	var result []*models.ExampleQuery
	for _, eq := range f.items {
		for _, id := range ids {
			if eq.ID == id {
				result = append(result, eq)
			}
		}
	}
	return result, nil
}

func (f *fakeExampleQueryRepo) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.ExampleQuery, error) {
	var result []*models.ExampleQuery
	for _, eq := range f.items {
		if eq.DatasourceID == datasourceID {
			result = append(result, eq)
		}
	}
	return result, nil
}

func (f *fakeExampleQueryRepo) Count(ctx context.Context, scope repositories.SearchScope) (int, error) {
	return len(f.items), nil
}

func (f *fakeExampleQueryRepo) VectorSearch(ctx context.Context, embedding []float32, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.vector, f.vectorErr
}

func (f *fakeExampleQueryRepo) LexicalSearch(ctx context.Context, query string, scope repositories.SearchScope, k int) ([]repositories.RankedID, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeExampleQueryRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	f.updateCalls++
	for _, eq := range f.items {
		if eq.ID == id {
			eq.Embedding = embedding
			eq.EmbeddingHash = hash
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func pageSlice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ranked builds a RankedID list from ids in rank order.
func ranked(ids ...uuid.UUID) []repositories.RankedID {
	result := make([]repositories.RankedID, len(ids))
	for i, id := range ids {
		result[i] = repositories.RankedID{ID: id, Rank: i + 1}
	}
	return result
}

// testSearchConfig mirrors the production defaults.
func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		RRFConstant:         60,
		CandidateMultiplier: 2,
		DefaultLimit:        10,
		MaxLimit:            100,
	}
}

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/llm"
	"github.com/schemalink/schemalink-engine/pkg/models"
)

const seedYAML = `
datasources:
  - name: Shop
    slug: shop
    engine: POSTGRES
    description: Main transactional database
    tables:
      - slug: orders
        physical_name: orders
        semantic_name: Customer orders
        description: One row per placed order
        columns:
          - slug: id
            name: id
            data_type: uuid
            is_primary_key: true
          - slug: status
            name: status
            data_type: text
            semantic_name: Order status
            rules:
              - Treat CANCELLED orders as excluded from revenue
            values:
              - raw: PENDING
                label: Pending
              - raw: SHIPPED
                label: Shipped
          - slug: customer_id
            name: customer_id
            data_type: uuid
      - slug: customers
        physical_name: customers
        semantic_name: Customers
        columns:
          - slug: id
            name: id
            data_type: uuid
            is_primary_key: true
    edges:
      - source: orders.customer_id
        target: customers.id
        relationship: MANY_TO_ONE
        description: Each order belongs to one customer
    metrics:
      - slug: order-count
        name: Order count
        calculation_sql: COUNT(*)
        required_tables: [orders]
    example_queries:
      - slug: pending-orders
        prompt: How many orders are still pending?
        sql: SELECT COUNT(*) FROM orders WHERE status = 'PENDING'
        complexity: 1
        verified: true
synonyms:
  - slug: purchases
    term: purchases
    target_kind: TABLE
    target: shop/orders
  - slug: in-flight
    term: in flight
    target_kind: VALUE
    target: shop/orders/status/PENDING
`

type seedFixture struct {
	client      *llm.MockEmbeddingClient
	datasources *fakeDatasourceRepo
	tables      *fakeTableRepo
	columns     *fakeColumnRepo
	edges       *fakeEdgeRepo
	metrics     *fakeMetricRepo
	synonyms    *fakeSynonymRepo
	rules       *fakeRuleRepo
	values      *fakeValueRepo
	examples    *fakeExampleQueryRepo

	svc SeedService
}

func newSeedFixture() *seedFixture {
	f := &seedFixture{
		client:      llm.NewMockEmbeddingClient(),
		datasources: &fakeDatasourceRepo{},
		tables:      &fakeTableRepo{},
		columns:     &fakeColumnRepo{},
		edges:       &fakeEdgeRepo{},
		metrics:     &fakeMetricRepo{},
		synonyms:    &fakeSynonymRepo{},
		rules:       &fakeRuleRepo{},
		values:      &fakeValueRepo{},
		examples:    &fakeExampleQueryRepo{},
	}
	cache := NewEmbeddingCache(
		f.client,
		f.datasources, f.tables, f.columns, f.edges,
		f.metrics, f.synonyms, f.rules, f.examples,
		zap.NewNop(),
	)
	f.svc = NewSeedService(
		cache,
		f.datasources, f.tables, f.columns, f.edges,
		f.metrics, f.synonyms, f.rules, f.values, f.examples,
		2,
		zap.NewNop(),
	)
	return f
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedFromFile_LoadsWholeCatalog(t *testing.T) {
	f := newSeedFixture()

	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, seedYAML))
	require.NoError(t, err)

	require.Len(t, f.datasources.items, 1)
	assert.Equal(t, "shop", f.datasources.items[0].Slug)

	assert.Len(t, f.tables.items, 2)
	assert.Len(t, f.columns.items, 4)
	assert.Len(t, f.rules.items, 1)
	assert.Len(t, f.values.items, 2)
	assert.Len(t, f.edges.items, 1)
	assert.Len(t, f.metrics.items, 1)
	assert.Len(t, f.examples.items, 1)
	assert.Len(t, f.synonyms.items, 2)
}

func TestSeedFromFile_ResolvesReferences(t *testing.T) {
	f := newSeedFixture()

	require.NoError(t, f.svc.SeedFromFile(context.Background(), writeSeedFile(t, seedYAML)))

	// The edge endpoints resolve to the created columns.
	var customerID, customersPK *models.Column
	for _, c := range f.columns.items {
		switch {
		case c.Slug == "customer_id":
			col := c.Column
			customerID = &col
		case c.Slug == "id" && len(f.tables.items) > 1 && c.TableID == f.tables.items[1].ID:
			col := c.Column
			customersPK = &col
		}
	}
	require.NotNil(t, customerID)
	require.NotNil(t, customersPK)

	edge := f.edges.items[0]
	assert.Equal(t, customerID.ID, edge.SourceColumnID)
	assert.Equal(t, customersPK.ID, edge.TargetColumnID)
	assert.Equal(t, models.ManyToOne, edge.RelationshipType)

	// The metric's required table resolves to orders.
	assert.Equal(t, []uuid.UUID{f.tables.items[0].ID}, f.metrics.items[0].RequiredTables)

	// Synonyms resolve their slug-path targets.
	for _, syn := range f.synonyms.items {
		switch syn.Slug {
		case "purchases":
			assert.Equal(t, models.TargetTable, syn.TargetKind)
			assert.Equal(t, f.tables.items[0].ID, syn.TargetID)
		case "in-flight":
			assert.Equal(t, models.TargetValue, syn.TargetKind)
			assert.Equal(t, f.values.items[0].ID, syn.TargetID)
		}
	}
}

func TestSeedFromFile_BackfillsEmbeddings(t *testing.T) {
	f := newSeedFixture()

	require.NoError(t, f.svc.SeedFromFile(context.Background(), writeSeedFile(t, seedYAML)))

	// Every embeddable entity got persisted exactly once. Categorical
	// values carry no embeddings.
	assert.Equal(t, 1, f.datasources.updateCalls)
	assert.Equal(t, 2, f.tables.updateCalls)
	assert.Equal(t, 4, f.columns.updateCalls)
	assert.Equal(t, 1, f.edges.updateCalls)
	assert.Equal(t, 1, f.metrics.updateCalls)
	assert.Equal(t, 2, f.synonyms.updateCalls)
	assert.Equal(t, 1, f.rules.updateCalls)
	assert.Equal(t, 1, f.examples.updateCalls)

	// The whole catalog fits one backfill chunk, so the generator saw a
	// single batch request and no per-entity calls.
	assert.Equal(t, 1, f.client.CreateEmbeddingsCalls)
	assert.Equal(t, 0, f.client.CreateEmbeddingCalls)
}

func TestSeedFromFile_UnknownEdgeEndpoint(t *testing.T) {
	f := newSeedFixture()
	bad := `
datasources:
  - name: Shop
    slug: shop
    engine: POSTGRES
    tables:
      - slug: orders
        physical_name: orders
        columns:
          - slug: id
            name: id
            data_type: uuid
    edges:
      - source: orders.nope
        target: orders.id
        relationship: ONE_TO_ONE
`

	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, bad))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSeedFromFile_UnknownMetricTable(t *testing.T) {
	f := newSeedFixture()
	bad := `
datasources:
  - name: Shop
    slug: shop
    engine: POSTGRES
    metrics:
      - slug: broken
        name: Broken
        calculation_sql: COUNT(*)
        required_tables: [missing]
`

	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, bad))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSeedFromFile_UnknownSynonymKind(t *testing.T) {
	f := newSeedFixture()
	bad := `
synonyms:
  - slug: x
    term: x
    target_kind: WIDGET
    target: shop/orders
`

	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, bad))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSeedFromFile_MissingFile(t *testing.T) {
	f := newSeedFixture()
	err := f.svc.SeedFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSeedFromFile_MalformedYAML(t *testing.T) {
	f := newSeedFixture()
	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, "datasources: [not: {valid"))
	assert.Error(t, err)
}

func TestSeedFromFile_EmbeddingFailureIsNotFatal(t *testing.T) {
	f := newSeedFixture()
	f.client.CreateEmbeddingsFunc = func(ctx context.Context, inputs []string) ([][]float32, error) {
		return nil, assert.AnError
	}

	// Entities still land; they stay lexically searchable.
	err := f.svc.SeedFromFile(context.Background(), writeSeedFile(t, seedYAML))
	require.NoError(t, err)
	assert.Len(t, f.tables.items, 2)
	assert.Equal(t, 0, f.tables.updateCalls)
}

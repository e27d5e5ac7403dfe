package embed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

func newSearchFixture(t *testing.T) (*Service, *sqlite.UnitStorage) {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := sqlite.NewDB(logger, &common.StorageConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	units := sqlite.NewUnitStorage(db, logger)
	stats := sqlite.NewStatsStorage(db, logger)

	config := common.EmbedConfig{
		Provider:      "pseudo",
		Dimensions:    64,
		MaxInputLen:   8000,
		MinSimilarity: 0.5,
	}
	service := NewService(config, logger, NewPseudoProvider(64), units, stats)
	return service, units
}

func embedProduct(t *testing.T, service *Service, id, text string) {
	t.Helper()

	job, err := models.NewJob(models.FamilyEmbed, &models.EmbedPayload{
		TargetTable: "products",
		TargetID:    id,
		Text:        text,
	}, 3, 5)
	require.NoError(t, err)

	_, err = service.Execute(context.Background(), job)
	require.NoError(t, err)
}

func TestSearchFindsExactMatch(t *testing.T) {
	service, units := newSearchFixture(t)
	ctx := context.Background()

	products := []*models.Product{
		{JobID: "job_1", Name: "Oak Dining Table", SKU: "OAK-100"},
		{JobID: "job_1", Name: "Ceramic Bathroom Sink", SKU: "CS-9"},
		{JobID: "job_1", Name: "Brass Faucet", SKU: "BF-22"},
	}
	require.NoError(t, units.SaveProducts(ctx, products))

	for _, p := range products {
		embedProduct(t, service, p.ID, p.Name)
	}

	results, err := service.Search(ctx, "products", "Oak Dining Table", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, products[0].ID, results[0].ID)
	assert.Equal(t, "Oak Dining Table", results[0].Text)
	assert.Greater(t, results[0].Similarity, 0.99, "identical text should rank near 1.0")

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.5, "results below the threshold must be filtered")
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	service, units := newSearchFixture(t)
	ctx := context.Background()

	products := []*models.Product{
		{JobID: "job_1", Name: "Pine Chair"},
		{JobID: "job_1", Name: "Pine Chair"},
	}
	require.NoError(t, units.SaveProducts(ctx, products))
	for _, p := range products {
		embedProduct(t, service, p.ID, p.Name)
	}

	results, err := service.Search(ctx, "products", "Pine Chair", 1, 0.1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	service, _ := newSearchFixture(t)

	_, err := service.Search(context.Background(), "products", "", 0, 0)
	assert.Error(t, err)
}

func TestSearchRejectsUnknownTable(t *testing.T) {
	service, _ := newSearchFixture(t)

	_, err := service.Search(context.Background(), "jobs", "anything", 0, 0)
	assert.Error(t, err)
}

func TestExecuteFailsForMissingTarget(t *testing.T) {
	service, _ := newSearchFixture(t)

	job, err := models.NewJob(models.FamilyEmbed, &models.EmbedPayload{
		TargetTable: "products",
		TargetID:    "prod_missing",
		Text:        "ghost product",
	}, 3, 5)
	require.NoError(t, err)

	_, err = service.Execute(context.Background(), job)
	assert.Error(t, err)
}

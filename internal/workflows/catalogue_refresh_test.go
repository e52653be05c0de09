package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/fuelroute/internal/adapters/memory"
	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
)

func newEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *CatalogueActivities) {
	t.Helper()
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	a := &CatalogueActivities{}
	env.RegisterWorkflow(CatalogueRefreshWorkflow)
	env.RegisterActivity(a)
	return env, a
}

func TestCatalogueRefreshWorkflow(t *testing.T) {
	env, a := newEnv(t)
	imported := &domain.ImportResult{Stations: 2, Prices: 3, Skipped: 1}

	env.OnActivity(a.ImportCatalogue, mock.Anything, "data/prices.csv").Return(imported, nil).Once()
	env.OnActivity(a.InvalidateCatalogueCache, mock.Anything).Return(nil).Once()
	env.OnActivity(a.PublishCatalogueUpdated, mock.Anything, mock.MatchedBy(func(r domain.ImportResult) bool { return r.Stations == 2 })).Return(nil).Once()

	env.ExecuteWorkflow(CatalogueRefreshWorkflow, CatalogueRefreshInput{Path: "data/prices.csv"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var got domain.ImportResult
	require.NoError(t, env.GetWorkflowResult(&got))
	assert.Equal(t, 2, got.Stations)
	assert.Equal(t, 1, got.Skipped)
	env.AssertExpectations(t)
}

func TestCatalogueRefreshWorkflow_ImportFails(t *testing.T) {
	env, a := newEnv(t)

	env.OnActivity(a.ImportCatalogue, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("import", ErrTypeBadExport, errors.New("missing column"))).Once()

	env.ExecuteWorkflow(CatalogueRefreshWorkflow, CatalogueRefreshInput{Path: "bad.csv"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "InvalidateCatalogueCache", mock.Anything)
	env.AssertNotCalled(t, "PublishCatalogueUpdated", mock.Anything, mock.Anything)
}

func TestCatalogueRefreshWorkflow_PostImportFailuresAreNotFatal(t *testing.T) {
	env, a := newEnv(t)
	imported := &domain.ImportResult{Stations: 1, Prices: 1}

	env.OnActivity(a.ImportCatalogue, mock.Anything, mock.Anything).Return(imported, nil)
	env.OnActivity(a.InvalidateCatalogueCache, mock.Anything).Return(errors.New("valkey down"))
	env.OnActivity(a.PublishCatalogueUpdated, mock.Anything, mock.Anything).Return(errors.New("nats down"))

	env.ExecuteWorkflow(CatalogueRefreshWorkflow, CatalogueRefreshInput{Path: "data/prices.csv"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
}

type invalidatorFunc func(ctx context.Context) error

func (f invalidatorFunc) Invalidate(ctx context.Context) error { return f(ctx) }

func TestImportCatalogueActivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	data := "OPIS Truckstop ID,Truckstop Name,Address,City,State,Rack ID,Retail Price,Latitude,Longitude\n" +
		"7,WOODSHED,I-44,Big Cabin,OK,307,3.007,36.5367,-95.2220\n" +
		"7,WOODSHED,I-44,Big Cabin,OK,307,2.999,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	store := memory.NewCatalogue()
	invalidated := false
	a := &CatalogueActivities{
		Importer: usecases.NewCatalogueImporter(store, nil, nil),
		Cache: invalidatorFunc(func(context.Context) error {
			invalidated = true
			return nil
		}),
	}

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.ImportCatalogue, path)
	require.NoError(t, err)
	var res domain.ImportResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, 1, res.Stations)
	assert.Equal(t, 2, res.Prices)

	got, err := store.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.Price(2999), got.Price)

	_, err = env.ExecuteActivity(a.InvalidateCatalogueCache)
	require.NoError(t, err)
	assert.True(t, invalidated)

	_, err = env.ExecuteActivity(a.ImportCatalogue, filepath.Join(t.TempDir(), "missing.csv"))
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
}

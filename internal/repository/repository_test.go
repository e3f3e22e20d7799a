package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"budget-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"
)

// RepositoryTestSuite runs the store against an in-memory sqlite database
// through the same SQL that serves Postgres in production.
type RepositoryTestSuite struct {
	suite.Suite
	db   *sql.DB
	repo *Repository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(s.T(), err, "failed to open test database")
	// A second pool connection would see a different in-memory database.
	db.SetMaxOpenConns(1)
	require.NoError(s.T(), RunMigrations(db, "sqlite"))

	s.db = db
	s.repo = NewRepository(db, "sqlite")
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *RepositoryTestSuite) mustCreate(name string, balance int64) *models.Allocation {
	alloc := &models.Allocation{Name: name, Balance: balance}
	require.NoError(s.T(), s.repo.CreateAllocation(s.ctx, alloc))
	return alloc
}

func (s *RepositoryTestSuite) TestCreateAndGetAllocation() {
	created := s.mustCreate("groceries", 500)
	assert.NotZero(s.T(), created.ID)

	got, err := s.repo.GetAllocation(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "groceries", got.Name)
	assert.Equal(s.T(), int64(500), got.Balance)
}

func (s *RepositoryTestSuite) TestGetAllocationNotFound() {
	_, err := s.repo.GetAllocation(s.ctx, 9999)
	assert.ErrorIs(s.T(), err, models.ErrNotFound)
}

func (s *RepositoryTestSuite) TestUpdateAllocation() {
	alloc := s.mustCreate("groceries", 500)

	alloc.Name = "food"
	alloc.Balance = 650
	require.NoError(s.T(), s.repo.UpdateAllocation(s.ctx, alloc))

	got, err := s.repo.GetAllocation(s.ctx, alloc.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "food", got.Name)
	assert.Equal(s.T(), int64(650), got.Balance)
}

func (s *RepositoryTestSuite) TestUpdateAllocationNotFound() {
	err := s.repo.UpdateAllocation(s.ctx, &models.Allocation{ID: 9999, Name: "ghost"})
	assert.ErrorIs(s.T(), err, models.ErrNotFound)
}

func (s *RepositoryTestSuite) TestSplitAllocation() {
	src := s.mustCreate("groceries", 500)

	out, err := s.repo.SplitAllocation(s.ctx, src.ID, 200)
	require.NoError(s.T(), err)
	assert.NotEqual(s.T(), src.ID, out.ID)
	assert.Equal(s.T(), "groceries", out.Name)
	assert.Equal(s.T(), int64(200), out.Balance)

	remaining, err := s.repo.GetAllocation(s.ctx, src.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(300), remaining.Balance)
	// Conservation: the two balances sum to the original.
	assert.Equal(s.T(), int64(500), remaining.Balance+out.Balance)
}

func (s *RepositoryTestSuite) TestSplitWholeBalance() {
	src := s.mustCreate("groceries", 500)

	out, err := s.repo.SplitAllocation(s.ctx, src.ID, 500)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(500), out.Balance)

	remaining, err := s.repo.GetAllocation(s.ctx, src.ID)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), remaining.Balance)
}

func (s *RepositoryTestSuite) TestSplitInvalidAmount() {
	src := s.mustCreate("groceries", 500)

	for _, amount := range []int64{-1, 501} {
		_, err := s.repo.SplitAllocation(s.ctx, src.ID, amount)
		assert.ErrorIs(s.T(), err, models.ErrInvalidArgument)
	}

	// Failed splits leave the source untouched and create nothing.
	got, err := s.repo.GetAllocation(s.ctx, src.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(500), got.Balance)

	allocs, err := s.repo.ListAllocations(s.ctx, "", nil)
	require.NoError(s.T(), err)
	assert.Len(s.T(), allocs, 1)
}

func (s *RepositoryTestSuite) TestSplitNotFound() {
	_, err := s.repo.SplitAllocation(s.ctx, 9999, 10)
	assert.ErrorIs(s.T(), err, models.ErrNotFound)
}

func (s *RepositoryTestSuite) TestMergeAllocations() {
	a := s.mustCreate("groceries", 300)
	b := s.mustCreate("eating out", 700)

	txn := &models.Transaction{AllocationID: a.ID, Amount: -50, Description: "veg"}
	_, err := s.repo.AddTransaction(s.ctx, txn)
	require.NoError(s.T(), err)

	merged, err := s.repo.MergeAllocations(s.ctx, []int64{a.ID, b.ID})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "groceries", merged.Name, "merged allocation takes the first id's name")
	assert.Equal(s.T(), int64(950), merged.Balance)

	// Inputs are consumed.
	_, err = s.repo.GetAllocation(s.ctx, a.ID)
	assert.ErrorIs(s.T(), err, models.ErrNotFound)
	_, err = s.repo.GetAllocation(s.ctx, b.ID)
	assert.ErrorIs(s.T(), err, models.ErrNotFound)

	// The ledger entry now points at the merged allocation.
	txns, err := s.repo.ListTransactions(s.ctx, "allocation_id = $1", []any{merged.ID})
	require.NoError(s.T(), err)
	require.Len(s.T(), txns, 1)
	assert.Equal(s.T(), txn.ID, txns[0].ID)
}

func (s *RepositoryTestSuite) TestMergeUnknownIDCreatesNothing() {
	a := s.mustCreate("groceries", 300)

	_, err := s.repo.MergeAllocations(s.ctx, []int64{a.ID, 9999})
	assert.ErrorIs(s.T(), err, models.ErrNotFound)

	allocs, err := s.repo.ListAllocations(s.ctx, "", nil)
	require.NoError(s.T(), err)
	assert.Len(s.T(), allocs, 1)
	assert.Equal(s.T(), int64(300), allocs[0].Balance)
}

func (s *RepositoryTestSuite) TestAddTransaction() {
	alloc := s.mustCreate("groceries", 500)

	txn := &models.Transaction{AllocationID: alloc.ID, Amount: -120, Description: "market"}
	balance, err := s.repo.AddTransaction(s.ctx, txn)
	require.NoError(s.T(), err)
	assert.NotZero(s.T(), txn.ID)
	assert.Equal(s.T(), int64(380), balance)
	assert.False(s.T(), txn.Timestamp.IsZero(), "timestamp is assigned when absent")

	got, err := s.repo.GetAllocation(s.ctx, alloc.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(380), got.Balance)
}

func (s *RepositoryTestSuite) TestAddTransactionUnknownAllocation() {
	_, err := s.repo.AddTransaction(s.ctx, &models.Transaction{AllocationID: 9999, Amount: 10})
	assert.ErrorIs(s.T(), err, models.ErrNotFound)

	txns, err := s.repo.ListTransactions(s.ctx, "", nil)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), txns)
}

func (s *RepositoryTestSuite) TestListTransactionsInsertionOrder() {
	alloc := s.mustCreate("groceries", 0)

	for _, amount := range []int64{10, -20, 30} {
		_, err := s.repo.AddTransaction(s.ctx, &models.Transaction{AllocationID: alloc.ID, Amount: amount})
		require.NoError(s.T(), err)
	}

	txns, err := s.repo.ListTransactions(s.ctx, "", nil)
	require.NoError(s.T(), err)
	require.Len(s.T(), txns, 3)
	assert.Equal(s.T(), int64(10), txns[0].Amount)
	assert.Equal(s.T(), int64(-20), txns[1].Amount)
	assert.Equal(s.T(), int64(30), txns[2].Amount)

	filtered, err := s.repo.ListTransactions(s.ctx, "amount > $1", []any{int64(0)})
	require.NoError(s.T(), err)
	require.Len(s.T(), filtered, 2)
	assert.Equal(s.T(), int64(10), filtered[0].Amount)
	assert.Equal(s.T(), int64(30), filtered[1].Amount)
}

func (s *RepositoryTestSuite) TestRefreshTokenLifecycle() {
	expiry := time.Now().Add(time.Hour).Unix()
	require.NoError(s.T(), s.repo.AddRefreshToken(s.ctx, "tok-1", expiry))

	found, err := s.repo.ConsumeRefreshToken(s.ctx, "tok-1")
	require.NoError(s.T(), err)
	assert.True(s.T(), found)

	// Consumption is single-use.
	found, err = s.repo.ConsumeRefreshToken(s.ctx, "tok-1")
	require.NoError(s.T(), err)
	assert.False(s.T(), found)

	// Never-issued tokens are indistinguishable from consumed ones.
	found, err = s.repo.ConsumeRefreshToken(s.ctx, "tok-unknown")
	require.NoError(s.T(), err)
	assert.False(s.T(), found)
}

func (s *RepositoryTestSuite) TestDeleteExpiredRefreshTokens() {
	now := time.Now().Unix()
	require.NoError(s.T(), s.repo.AddRefreshToken(s.ctx, "stale", now-10))
	require.NoError(s.T(), s.repo.AddRefreshToken(s.ctx, "live", now+3600))

	removed, err := s.repo.DeleteExpiredRefreshTokens(s.ctx, now)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), removed)

	found, err := s.repo.ConsumeRefreshToken(s.ctx, "live")
	require.NoError(s.T(), err)
	assert.True(s.T(), found)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

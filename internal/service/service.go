package service

import (
	"context"
	"strconv"
	"time"

	"budget-service/internal/models"
	"budget-service/internal/query"
	"budget-service/internal/repository"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Notifier delivers best-effort alerts about ledger events.
type Notifier interface {
	OverdraftAlert(alloc *models.Allocation, txn *models.Transaction) error
}

// Service handles business logic
type Service struct {
	repo     *repository.Repository
	log      *logrus.Logger
	notifier Notifier
}

// NewService initializes a new service. notifier may be nil to disable alerts.
func NewService(repo *repository.Repository, log *logrus.Logger, notifier Notifier) *Service {
	return &Service{repo: repo, log: log, notifier: notifier}
}

// Fields each entity exposes to the filter grammar, mapped onto columns.
var transactionColumns = query.Columns{
	"id":            {Name: "id", Kind: query.KindInt},
	"allocation_id": {Name: "allocation_id", Kind: query.KindInt},
	"amount":        {Name: "amount", Kind: query.KindInt},
	"description":   {Name: "description", Kind: query.KindString},
	"timestamp":     {Name: "created_at", Kind: query.KindTime},
}

var allocationColumns = query.Columns{
	"id":      {Name: "id", Kind: query.KindInt},
	"name":    {Name: "name", Kind: query.KindString},
	"balance": {Name: "balance", Kind: query.KindInt},
}

// Ping reports whether the persistent store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// AddTransaction appends a transaction to the ledger and adjusts its
// allocation's balance. When the adjustment leaves the allocation negative
// an overdraft alert is sent; alert failures are logged, never surfaced.
func (s *Service) AddTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	balance, err := s.repo.AddTransaction(ctx, txn)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Transaction %d added: allocation %d adjusted by %d to %d", txn.ID, txn.AllocationID, txn.Amount, balance)

	if balance < 0 && s.notifier != nil {
		alloc := &models.Allocation{ID: txn.AllocationID, Balance: balance}
		if err := s.notifier.OverdraftAlert(alloc, txn); err != nil {
			s.log.Errorf("Failed to send overdraft alert for allocation %d: %v", txn.AllocationID, err)
		}
	}
	return txn, nil
}

// Transactions returns ledger entries matching the filter expression in
// insertion order.
func (s *Service) Transactions(ctx context.Context, expr string) ([]models.Transaction, error) {
	where, args, err := query.Compile(expr, transactionColumns)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, where, args)
}

// Allocations returns allocations matching the filter expression.
func (s *Service) Allocations(ctx context.Context, expr string) ([]models.Allocation, error) {
	where, args, err := query.Compile(expr, allocationColumns)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAllocations(ctx, where, args)
}

// UpdateAllocation fully replaces an allocation's mutable fields by id
func (s *Service) UpdateAllocation(ctx context.Context, alloc *models.Allocation) error {
	if err := s.repo.UpdateAllocation(ctx, alloc); err != nil {
		return err
	}
	s.log.Infof("Allocation %d updated: name=%q balance=%d", alloc.ID, alloc.Name, alloc.Balance)
	return nil
}

// SplitAllocation carves amount out of an allocation into a new one and
// returns the new allocation. amount == current balance is a legal
// degenerate split leaving the source at zero.
func (s *Service) SplitAllocation(ctx context.Context, id, amount int64) (*models.Allocation, error) {
	alloc, err := s.repo.SplitAllocation(ctx, id, amount)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Allocation %d split: %d moved into allocation %d", id, amount, alloc.ID)
	return alloc, nil
}

// MergeAllocations combines at least two distinct allocations into a new
// one carrying the summed balance. Duplicate ids are ignored.
func (s *Service) MergeAllocations(ctx context.Context, ids []int64) (*models.Allocation, error) {
	distinct := dedupe(ids)
	if len(distinct) < 2 {
		return nil, models.ErrInvalidArgument
	}

	alloc, err := s.repo.MergeAllocations(ctx, distinct)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Allocations %v merged into allocation %d with balance %d", distinct, alloc.ID, alloc.Balance)
	return alloc, nil
}

// TransactionStatementXML renders the transactions matching the filter
// expression as an XML statement document.
func (s *Service) TransactionStatementXML(ctx context.Context, expr string) ([]byte, error) {
	txns, err := s.Transactions(ctx, expr)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("statement")
	root.CreateAttr("generated", time.Now().UTC().Format(time.RFC3339))
	for _, t := range txns {
		e := root.CreateElement("transaction")
		e.CreateAttr("id", strconv.FormatInt(t.ID, 10))
		e.CreateAttr("allocation_id", strconv.FormatInt(t.AllocationID, 10))
		e.CreateAttr("amount", strconv.FormatInt(t.Amount, 10))
		e.CreateAttr("timestamp", t.Timestamp.UTC().Format(time.RFC3339))
		e.SetText(t.Description)
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

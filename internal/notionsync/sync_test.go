package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotionService is a mock implementation of NotionService for testing.
type mockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePageFunc   func(ctx context.Context, pageID string) error

	created []notionapi.Properties
	deleted []string
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return &notionapi.Page{ID: notionapi.ObjectID("new-page")}, nil
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, filter)
}

func (m *mockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	if m.ArchivePageFunc != nil {
		if err := m.ArchivePageFunc(ctx, pageID); err != nil {
			return err
		}
	}
	m.deleted = append(m.deleted, pageID)
	return nil
}

func mirroredPage(pageID, txID string) notionapi.Page {
	props := notionapi.Properties{}
	if txID != "" {
		props[PropTransactionID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: txID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func ledgerTx(id string, kind domain.Kind, amount string) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Kind:      kind,
		Category:  "Food",
		Source:    "Tesco",
		Amount:    decimal.RequireFromString(amount),
		Date:      "2025-06-01",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func singlePage(pages ...notionapi.Page) func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		return &notionapi.DatabaseQueryResponse{Results: pages}, nil
	}
}

func TestTransactionToNotionProperties(t *testing.T) {
	tx := ledgerTx("t1", domain.KindExpense, "12.50")
	tx.Notes = "weekly shop"

	props := TransactionToNotionProperties(tx, "GBP")

	title, ok := props[PropSource].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Tesco", title.Title[0].Text.Content)

	amount, ok := props[PropAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, -12.5, amount.Number)

	currency, ok := props[PropCurrency].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "GBP", currency.Select.Name)

	assert.Contains(t, props, PropDate)
	assert.Contains(t, props, PropNotes)
	assert.Contains(t, props, PropRecordedAt)
}

func TestTransactionToNotionProperties_IncomeIsPositive(t *testing.T) {
	props := TransactionToNotionProperties(ledgerTx("t1", domain.KindIncome, "100"), "USD")
	amount := props[PropAmount].(notionapi.NumberProperty)
	assert.Equal(t, 100.0, amount.Number)
	assert.NotContains(t, props, PropNotes)
}

func TestSyncTransactions(t *testing.T) {
	client := &mockNotionService{
		QueryDatabaseFunc: singlePage(
			mirroredPage("p1", "t1"),
			mirroredPage("p-stale", "gone"),
			mirroredPage("p-untagged", ""),
			mirroredPage("p-dup", "t1"),
		),
	}
	txs := []domain.Transaction{
		ledgerTx("t1", domain.KindExpense, "10"),
		ledgerTx("t2", domain.KindExpense, "20"),
	}

	res, err := SyncTransactions(context.Background(), client, "db", txs, "USD", false)
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 1, Deleted: 3, Skipped: 1}, res)
	assert.ElementsMatch(t, []string{"p-stale", "p-untagged", "p-dup"}, client.deleted)
	require.Len(t, client.created, 1)
	id := client.created[0][PropTransactionID].(notionapi.RichTextProperty)
	assert.Equal(t, "t2", id.RichText[0].Text.Content)
}

func TestSyncTransactions_DryRun(t *testing.T) {
	client := &mockNotionService{QueryDatabaseFunc: singlePage(mirroredPage("p-stale", "gone"))}

	res, err := SyncTransactions(context.Background(), client, "db",
		[]domain.Transaction{ledgerTx("t1", domain.KindExpense, "10")}, "USD", true)
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 1, Deleted: 1, DryRun: true}, res)
	assert.Empty(t, client.created)
	assert.Empty(t, client.deleted)
}

func TestSyncTransactions_PageFailuresAreCounted(t *testing.T) {
	client := &mockNotionService{
		QueryDatabaseFunc: singlePage(mirroredPage("p-stale", "gone")),
		ArchivePageFunc:   func(context.Context, string) error { return errors.New("rate limited") },
		CreatePageFunc: func(context.Context, string, notionapi.Properties) (*notionapi.Page, error) {
			return nil, errors.New("validation failed")
		},
	}

	res, err := SyncTransactions(context.Background(), client, "db",
		[]domain.Transaction{ledgerTx("t1", domain.KindExpense, "10")}, "USD", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Created)
}

func TestSyncTransactions_QueryError(t *testing.T) {
	client := &mockNotionService{
		QueryDatabaseFunc: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}
	_, err := SyncTransactions(context.Background(), client, "db", nil, "USD", false)
	assert.ErrorContains(t, err, "unauthorized")
}

func TestQueryAllNotionPages_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	client := &mockNotionService{
		QueryDatabaseFunc: func(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{mirroredPage("p1", "t1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{mirroredPage("p2", "t2")}}, nil
		},
	}

	pages, err := queryAllNotionPages(context.Background(), client, "db")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
}

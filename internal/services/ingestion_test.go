package services

import (
	"context"
	"os"
	"testing"

	"shipdesk/internal/models"
	"shipdesk/pkg/config"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/spreadsheet"
	"shipdesk/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const sampleCSV = "Model,Name,Category,Qty,Unit,Cartons,Carton No,Gross,Net,Volume,Specs,Notes\n" +
	"ES-02,Scooter,Mobility,4,199.999,2,C-01,12.345,11.5,0.12345,36V,fragile\n" +
	",orphan row,,9,9,,,,,,,\n"

func newDocumentService(t *testing.T, db *gorm.DB, store storage.Storage) *DocumentService {
	t.Helper()
	return NewDocumentService(db, store, config.UploadConfig{
		MaxFileSize:       1024 * 1024,
		AllowedExtensions: []string{"xlsx", "xls", "csv"},
	})
}

func newLocalStorage(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func ownerScope(user *models.User) *Scope {
	return &Scope{UserID: user.ID, Role: user.Role, Effective: &Effective{Role: user.Role}}
}

func countItems(t *testing.T, db *gorm.DB, docID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ShippingItem{}).Where("shipping_document_id = ?", docID).Count(&n).Error)
	return n
}

func TestIngestParsesRowsAndTotals(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, newLocalStorage(t))
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, ownerScope(user), UploadInput{FileName: "manifest.csv", Data: []byte(sampleCSV)})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, doc.Status)

	result, err := svc.Ingestion().Ingest(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemCount)
	assert.Equal(t, "800.00", result.TotalAmount.StringFixed(2))

	got, err := svc.Get(ctx, ownerScope(user), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusProcessed, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Equal(t, 1, got.TotalItems)
	assert.Equal(t, "800.00", got.TotalAmount.StringFixed(2))

	require.Len(t, got.Items, 1)
	item := got.Items[0]
	assert.Equal(t, "ES-02", item.ModelNumber)
	assert.Equal(t, 2, item.RowNumber)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, "200.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "12.35", item.GrossWeight.StringFixed(2))
	assert.Equal(t, "0.123", item.Volume.StringFixed(3))
	require.NotNil(t, item.Category)
	assert.Equal(t, "Mobility", *item.Category)

	// 重复解析替换明细
	again, err := svc.Ingestion().Ingest(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, result.ItemCount, again.ItemCount)
	assert.Equal(t, int64(1), countItems(t, db, doc.ID))
}

func TestIngestCorruptFileLeavesDocumentUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, newLocalStorage(t))
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, ownerScope(user), UploadInput{FileName: "broken.xlsx", Data: []byte("not a workbook")})
	require.NoError(t, err)

	_, err = svc.Ingestion().Ingest(ctx, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrIngestionFailed)

	var fresh models.ShippingDocument
	require.NoError(t, db.First(&fresh, doc.ID).Error)
	assert.Equal(t, models.DocumentStatusPending, fresh.Status)
	assert.Nil(t, fresh.ProcessedAt)
	assert.Equal(t, int64(0), countItems(t, db, doc.ID))
}

func TestIngestUnknownDocument(t *testing.T) {
	db := newTestDB(t)
	ingestion := NewIngestionService(db, newLocalStorage(t))

	_, err := ingestion.Ingest(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParseItemsCoercesBadNumbers(t *testing.T) {
	sheet, err := spreadsheet.Open([]byte("h\nA1,,,lots,n/a,,,,,,,\nA2,,,3,2.5\n"), "csv")
	require.NoError(t, err)

	items, total := ParseItems(sheet)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Quantity)
	assert.True(t, items[0].UnitPrice.IsZero())
	assert.Nil(t, items[0].ProductName)
	assert.Equal(t, "7.50", items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, "7.50", total.StringFixed(2))
}

func TestParseItemsClampsOutOfRangeCells(t *testing.T) {
	data := "h\n" +
		"BIG,,,99999999999999999999,1e10000000,,,123456789,1e-40,99999999.9999\n" +
		"OK,,,2,99999999.994\n"
	sheet, err := spreadsheet.Open([]byte(data), "csv")
	require.NoError(t, err)

	items, total := ParseItems(sheet)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Quantity)
	assert.True(t, items[0].UnitPrice.IsZero())
	assert.True(t, items[0].GrossWeight.IsZero())
	assert.True(t, items[0].NetWeight.IsZero())
	assert.True(t, items[0].Volume.IsZero())
	assert.True(t, items[0].TotalPrice.IsZero())

	assert.Equal(t, "99999999.99", items[1].UnitPrice.StringFixed(2))
	assert.Equal(t, "199999999.98", items[1].TotalPrice.StringFixed(2))
	assert.Equal(t, "199999999.98", total.StringFixed(2))
}

func TestParseItemsZeroesOverflowingLineTotal(t *testing.T) {
	sheet, err := spreadsheet.Open([]byte("h\nA1,,,2000000000,99999999.99\n"), "csv")
	require.NoError(t, err)

	items, total := ParseItems(sheet)
	require.Len(t, items, 1)
	assert.Equal(t, 2000000000, items[0].Quantity)
	assert.True(t, items[0].TotalPrice.IsZero())
	assert.True(t, total.IsZero())
}

func TestIngestRejectsOverflowingDocumentTotal(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, newLocalStorage(t))
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	ctx := context.Background()

	data := "h\nA1,,,100000000,99.99\nA2,,,100000000,99.99\n"
	doc, err := svc.Upload(ctx, ownerScope(user), UploadInput{FileName: "huge.csv", Data: []byte(data)})
	require.NoError(t, err)

	_, err = svc.Ingestion().Ingest(ctx, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrIngestionFailed)

	var fresh models.ShippingDocument
	require.NoError(t, db.First(&fresh, doc.ID).Error)
	assert.Equal(t, models.DocumentStatusPending, fresh.Status)
	assert.Equal(t, int64(0), countItems(t, db, doc.ID))
}

func TestParseItemsFromXLS(t *testing.T) {
	data, err := os.ReadFile("../../pkg/spreadsheet/testdata/manifest.xls")
	require.NoError(t, err)
	sheet, err := spreadsheet.Open(data, "xls")
	require.NoError(t, err)

	items, total := ParseItems(sheet)
	require.Len(t, items, 2)

	assert.Equal(t, "EV-07", items[0].ModelNumber)
	assert.Equal(t, 2, items[0].RowNumber)
	require.NotNil(t, items[0].Category)
	assert.Equal(t, "电动滑板车", *items[0].Category)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, "50.00", items[0].TotalPrice.StringFixed(2))

	assert.Equal(t, "ES-02", items[1].ModelNumber)
	assert.Equal(t, 4, items[1].RowNumber)
	assert.Equal(t, 1200, items[1].Quantity)
	assert.Nil(t, items[1].ProductName)
	assert.True(t, items[1].TotalPrice.IsZero())

	assert.Equal(t, "50.00", total.StringFixed(2))
}

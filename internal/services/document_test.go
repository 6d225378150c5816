package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"shipdesk/internal/models"
	"shipdesk/pkg/config"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flakyStorage 可以让删除操作失败的存储
type flakyStorage struct {
	storage.Storage
	mu         sync.Mutex
	failDelete bool
}

func (s *flakyStorage) setFailDelete(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = fail
}

func (s *flakyStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	fail := s.failDelete
	s.mu.Unlock()
	if fail {
		return errors.New("bucket unavailable")
	}
	return s.Storage.Delete(ctx, key)
}

func TestUploadValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewDocumentService(db, newLocalStorage(t), config.UploadConfig{
		MaxFileSize:       16,
		AllowedExtensions: []string{"csv"},
	})
	scope := ownerScope(createUser(t, db, "admin@example.com", models.RoleAdmin))
	ctx := context.Background()

	cases := []struct {
		name  string
		in    UploadInput
		field string
	}{
		{"missing file", UploadInput{FileName: "a.csv"}, "file"},
		{"extension", UploadInput{FileName: "a.pdf", Data: []byte("x")}, "file"},
		{"too large", UploadInput{FileName: "a.csv", Data: make([]byte, 17)}, "file"},
		{"eta date", UploadInput{FileName: "a.csv", Data: []byte("x"), EtaDate: "14/10/2026"}, "eta_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, scope, tc.in)
			var verr *apperrors.ValidationError
			require.True(t, apperrors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.ShippingDocument{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadStoresMetadata(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, newLocalStorage(t))
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	scope := ownerScope(user)
	scope.TenantID = &tenant.ID

	doc, err := svc.Upload(context.Background(), scope, UploadInput{
		FileName:        "../../etc/Manifest.CSV",
		Data:            []byte(sampleCSV),
		OrderNumber:     "PO-778",
		EtaDate:         "2026-11-02",
		ContainerNumber: "  ",
		AutoParse:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Manifest.CSV", doc.FileName)
	assert.Equal(t, "csv", doc.FileType)
	assert.Equal(t, models.DocumentStatusProcessed, doc.Status)
	require.NotNil(t, doc.OrderNumber)
	assert.Equal(t, "PO-778", *doc.OrderNumber)
	assert.Nil(t, doc.ContainerNumber)
	require.NotNil(t, doc.EtaDate)
	assert.Equal(t, "2026-11-02", doc.EtaDate.Format("2006-01-02"))
	assert.Equal(t, tenant.ID, *doc.TenantID)
}

func TestDocumentsAreOwnerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newDocumentService(t, db, newLocalStorage(t))
	owner := createUser(t, db, "owner@example.com", models.RoleAdmin)
	other := createUser(t, db, "other@example.com", models.RoleSuperAdmin)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, ownerScope(owner), UploadInput{FileName: "m.csv", Data: []byte(sampleCSV)})
	require.NoError(t, err)

	_, err = svc.Get(ctx, ownerScope(other), doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, _, err = svc.Parse(ctx, ownerScope(other), doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, _, err = svc.Download(ctx, ownerScope(other), doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, ownerScope(other), doc.ID), apperrors.ErrForbidden)

	docs, total, err := svc.List(ctx, ownerScope(other), DocumentFilter{}, &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)

	_, reader, err := svc.Download(ctx, ownerScope(owner), doc.ID)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))
}

func TestDeleteQueuesOrphanWhenBlobDeleteFails(t *testing.T) {
	db := newTestDB(t)
	store := &flakyStorage{Storage: newLocalStorage(t)}
	svc := newDocumentService(t, db, store)
	scope := ownerScope(createUser(t, db, "admin@example.com", models.RoleAdmin))
	ctx := context.Background()

	doc, err := svc.Upload(ctx, scope, UploadInput{FileName: "m.csv", Data: []byte(sampleCSV), AutoParse: true})
	require.NoError(t, err)

	var stored models.ShippingDocument
	require.NoError(t, db.First(&stored, doc.ID).Error)

	store.setFailDelete(true)
	require.NoError(t, svc.Delete(ctx, scope, doc.ID))

	var docs int64
	require.NoError(t, db.Unscoped().Model(&models.ShippingDocument{}).Count(&docs).Error)
	assert.Zero(t, docs)
	assert.Zero(t, countItems(t, db, doc.ID))

	var orphans []models.OrphanBlob
	require.NoError(t, db.Find(&orphans).Error)
	require.Len(t, orphans, 1)
	assert.Equal(t, stored.FilePath, orphans[0].Path)
	assert.Contains(t, orphans[0].LastError, "bucket unavailable")

	sweeper := NewBlobSweeper(db, store, config.SweeperConfig{Spec: "@every 1h", MaxAttempts: 3})

	removed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, db.First(&orphans[0], orphans[0].ID).Error)
	assert.Equal(t, 2, orphans[0].Attempts)

	store.setFailDelete(false)
	removed, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var left int64
	require.NoError(t, db.Model(&models.OrphanBlob{}).Count(&left).Error)
	assert.Zero(t, left)

	_, err = store.Open(ctx, stored.FilePath)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestSweeperRejectsBadSpec(t *testing.T) {
	db := newTestDB(t)
	sweeper := NewBlobSweeper(db, newLocalStorage(t), config.SweeperConfig{Spec: "every now and then"})
	assert.Error(t, sweeper.Start())
	sweeper.Stop()
}

func TestSweepReportsAttemptUpdateFailure(t *testing.T) {
	db := newTestDB(t)
	store := &flakyStorage{Storage: newLocalStorage(t), failDelete: true}
	require.NoError(t, recordOrphan(db, "orphans/stuck.csv", errors.New("bucket offline")))

	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_orphan_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "orphan_blobs" {
			tx.AddError(errors.New("orphan table locked"))
		}
	}))

	sweeper := NewBlobSweeper(db, store, config.SweeperConfig{Spec: "@every 1h", MaxAttempts: 3})
	removed, err := sweeper.Sweep(context.Background())
	assert.Zero(t, removed)
	assert.ErrorContains(t, err, "orphan table locked")

	var orphan models.OrphanBlob
	require.NoError(t, db.Where("path = ?", "orphans/stuck.csv").First(&orphan).Error)
	assert.Equal(t, 1, orphan.Attempts)
}

// PropertyPulse - Listings Marketplace Interaction Analytics
// Copyright 2026 Castminster Developers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castminster/propertypulse

package watermark

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/castminster/propertypulse/internal/config"
	"github.com/castminster/propertypulse/internal/database"
	"github.com/castminster/propertypulse/internal/models"
	"github.com/castminster/propertypulse/internal/queue"
)

type fakeImageStore struct {
	images     map[uuid.UUID]*models.PropertyImage
	replaced   map[uuid.UUID][]byte
	getErr     error
	replaceErr error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{
		images:   make(map[uuid.UUID]*models.PropertyImage),
		replaced: make(map[uuid.UUID][]byte),
	}
}

func (f *fakeImageStore) GetImage(_ context.Context, id uuid.UUID) (*models.PropertyImage, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	img, ok := f.images[id]
	if !ok {
		return nil, database.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeImageStore) ReplaceWatermarked(_ context.Context, id uuid.UUID, watermarked []byte) (bool, error) {
	if f.replaceErr != nil {
		return false, f.replaceErr
	}
	img, ok := f.images[id]
	if !ok || img.IsWatermarked {
		return false, nil
	}
	img.Bytes = watermarked
	img.IsWatermarked = true
	f.replaced[id] = watermarked
	return true, nil
}

// writeTestAsset writes a small overlay PNG and returns its path.
func writeTestAsset(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "watermark.png")
	data := encodeTestPNG(t, 20, 20, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	return path
}

func testWorkerConfig(t *testing.T) config.WatermarkConfig {
	t.Helper()

	return config.WatermarkConfig{
		AssetPath:   writeTestAsset(t),
		Anchor:      "bottom_right",
		SizeRatio:   0.15,
		Opacity:     0.7,
		MarginRatio: 0.02,
		JPEGQuality: 95,
	}
}

func TestWorkerStampsLocalImage(t *testing.T) {
	store := newFakeImageStore()
	id := uuid.New()
	store.images[id] = &models.PropertyImage{
		ID:          id,
		PropertyID:  1,
		Bytes:       encodeTestJPEG(t, 200, 150, color.RGBA{R: 20, G: 20, B: 20, A: 255}),
		StorageKind: models.StorageLocal,
	}

	w := NewWorker(store, testWorkerConfig(t))
	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: id}); err != nil {
		t.Fatalf("Process() failed: %v", err)
	}

	if len(store.replaced[id]) == 0 {
		t.Fatal("expected watermarked bytes to be stored")
	}
	if !store.images[id].IsWatermarked {
		t.Error("expected image flagged watermarked")
	}
	// Result must still decode as an image.
	decodeResult(t, store.replaced[id])
}

func TestWorkerIdempotentOnRedelivery(t *testing.T) {
	store := newFakeImageStore()
	id := uuid.New()
	store.images[id] = &models.PropertyImage{
		ID:          id,
		Bytes:       encodeTestJPEG(t, 200, 150, color.RGBA{A: 255}),
		StorageKind: models.StorageLocal,
	}

	w := NewWorker(store, testWorkerConfig(t))
	job := queue.WatermarkJob{ImageID: id}

	if err := w.Process(context.Background(), job); err != nil {
		t.Fatalf("first Process() failed: %v", err)
	}
	stamped := store.images[id].Bytes

	// Redelivery of the same job must change nothing.
	if err := w.Process(context.Background(), job); err != nil {
		t.Fatalf("second Process() failed: %v", err)
	}
	if string(store.images[id].Bytes) != string(stamped) {
		t.Error("redelivered job altered the stored bytes")
	}
	if len(store.replaced) != 1 {
		t.Errorf("expected exactly 1 replace, got %d", len(store.replaced))
	}
}

func TestWorkerSkipsMissingRecord(t *testing.T) {
	store := newFakeImageStore()
	w := NewWorker(store, testWorkerConfig(t))

	// Unknown image is a permanent condition: finish the job, no error.
	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: uuid.New()}); err != nil {
		t.Errorf("expected nil for missing record, got %v", err)
	}
}

func TestWorkerSkipsRemoteStorage(t *testing.T) {
	store := newFakeImageStore()
	id := uuid.New()
	store.images[id] = &models.PropertyImage{
		ID:          id,
		Bytes:       encodeTestJPEG(t, 100, 100, color.RGBA{A: 255}),
		StorageKind: models.StorageRemote,
	}

	w := NewWorker(store, testWorkerConfig(t))
	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: id}); err != nil {
		t.Errorf("expected nil for remote storage, got %v", err)
	}
	if len(store.replaced) != 0 {
		t.Error("remote image must not be modified")
	}
}

func TestWorkerSkipsWhenAssetMissing(t *testing.T) {
	store := newFakeImageStore()
	id := uuid.New()
	store.images[id] = &models.PropertyImage{
		ID:          id,
		Bytes:       encodeTestJPEG(t, 100, 100, color.RGBA{A: 255}),
		StorageKind: models.StorageLocal,
	}

	cfg := testWorkerConfig(t)
	cfg.AssetPath = filepath.Join(t.TempDir(), "absent.png")
	w := NewWorker(store, cfg)

	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: id}); err != nil {
		t.Errorf("expected nil when asset missing, got %v", err)
	}
	if len(store.replaced) != 0 {
		t.Error("image must not be modified without an asset")
	}
}

func TestWorkerUndecodableBytesAreTerminal(t *testing.T) {
	store := newFakeImageStore()
	id := uuid.New()
	store.images[id] = &models.PropertyImage{
		ID:          id,
		Bytes:       []byte("not an image"),
		StorageKind: models.StorageLocal,
	}

	w := NewWorker(store, testWorkerConfig(t))
	// Corrupt input never succeeds on retry, so the job must finish.
	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: id}); err != nil {
		t.Errorf("expected nil for undecodable bytes, got %v", err)
	}
	if store.images[id].IsWatermarked {
		t.Error("corrupt image must not be flagged watermarked")
	}
}

func TestWorkerTransientStoreErrorsPropagate(t *testing.T) {
	store := newFakeImageStore()
	store.getErr = errors.New("connection reset")

	w := NewWorker(store, testWorkerConfig(t))
	if err := w.Process(context.Background(), queue.WatermarkJob{ImageID: uuid.New()}); err == nil {
		t.Error("expected transient store error to propagate for retry")
	}
}

func TestHandlerDropsMalformedPayload(t *testing.T) {
	w := NewWorker(newFakeImageStore(), testWorkerConfig(t))
	handler := w.Handler()

	msg := message.NewMessage("bad", []byte("not json"))
	if err := handler(msg); err != nil {
		t.Errorf("malformed payload must be acked, got %v", err)
	}
}

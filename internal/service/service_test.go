package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/detect"
	"github.com/veriqr/veriqr/internal/entity"
	"github.com/veriqr/veriqr/internal/ledger"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeProducts is an in-memory ProductStore
type fakeProducts struct {
	records map[string]*entity.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{records: make(map[string]*entity.Product)}
}

func (f *fakeProducts) Create(_ context.Context, p *entity.Product) error {
	clone := *p
	f.records[p.ID] = &clone
	return nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, companyID string, ids []string) ([]entity.Product, error) {
	var out []entity.Product
	for _, id := range ids {
		if p, ok := f.records[id]; ok && p.CompanyID == companyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) FindByQRHash(_ context.Context, qrHash string) (*entity.Product, error) {
	for _, p := range f.records {
		if p.QRHash == qrHash {
			clone := *p
			return &clone, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeProducts) UpdateAnchor(_ context.Context, companyID, productID, status, txID string) error {
	p, ok := f.records[productID]
	if !ok || p.CompanyID != companyID {
		return entity.ErrNotFound
	}
	p.AnchorStatus = status
	p.AnchorTxID = txID
	return nil
}

// fakeTemplates is an in-memory TemplateStore
type fakeTemplates struct {
	records map[string]*entity.DesignTemplate
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{records: make(map[string]*entity.DesignTemplate)}
}

func (f *fakeTemplates) Create(_ context.Context, t *entity.DesignTemplate) error {
	clone := *t
	f.records[t.ID] = &clone
	return nil
}

func (f *fakeTemplates) Activate(_ context.Context, companyID, templateID string) error {
	target, ok := f.records[templateID]
	if !ok || target.CompanyID != companyID {
		return entity.ErrNotFound
	}
	for _, t := range f.records {
		if t.CompanyID == companyID {
			t.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (f *fakeTemplates) FindActive(_ context.Context, companyID string) (*entity.DesignTemplate, error) {
	for _, t := range f.records {
		if t.CompanyID == companyID && t.IsActive {
			clone := *t
			return &clone, nil
		}
	}
	return nil, entity.ErrNoActiveTemplate
}

func (f *fakeTemplates) FindByID(_ context.Context, companyID, templateID string) (*entity.DesignTemplate, error) {
	if t, ok := f.records[templateID]; ok && t.CompanyID == companyID {
		clone := *t
		return &clone, nil
	}
	return nil, entity.ErrNotFound
}

// fakeCache is an in-memory TemplateCacher counting invalidations
type fakeCache struct {
	entries       map[string]*entity.DesignTemplate
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*entity.DesignTemplate)}
}

func (f *fakeCache) Get(_ context.Context, companyID string) (*entity.DesignTemplate, error) {
	return f.entries[companyID], nil
}

func (f *fakeCache) Set(_ context.Context, t *entity.DesignTemplate) error {
	f.entries[t.CompanyID] = t
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, companyID string) error {
	delete(f.entries, companyID)
	f.invalidations++
	return nil
}

// memBlobs is an in-memory BlobStorage
type memBlobs struct {
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	m.blobs[path] = data
	return "http://files.test/" + path, nil
}

func (m *memBlobs) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m.blobs[path]
	if !ok {
		return nil, errors.New("blob not found: " + path)
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, path string) error {
	delete(m.blobs, path)
	return nil
}

// fakeAnchorer records submissions and optionally fails them
type fakeAnchorer struct {
	err       error
	submitted int
}

func (f *fakeAnchorer) Submit(_ context.Context, productID, companyID, qrHash string) (*ledger.AnchorResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted++
	return &ledger.AnchorResult{TransactionID: "tx-1", TopicID: "anchors"}, nil
}

func (f *fakeAnchorer) Close() error { return nil }

// noWords is a WordRecognizer that never finds anything
type noWords struct{}

func (noWords) Words(context.Context, []byte, string) ([]detect.Word, error) {
	return nil, nil
}

// whitePNG encodes a solid white image as PNG bytes
func whitePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestProductRegister(t *testing.T) {
	store := newFakeProducts()
	anchorer := &fakeAnchorer{}
	svc := NewProductService(store, anchorer, quietLogger())

	product, err := svc.Register(context.Background(), "acme", RegisterProductInput{
		Name:         "Widget",
		SerialNumber: "SN-1",
		BatchNumber:  "B-1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if product.QRHash == "" || len(product.QRHash) != 64 {
		t.Errorf("qr hash = %q, want a sha256 hex digest", product.QRHash)
	}
	if product.AnchorStatus != entity.AnchorConfirmed || product.AnchorTxID != "tx-1" {
		t.Errorf("anchor = %s/%s, want confirmed/tx-1", product.AnchorStatus, product.AnchorTxID)
	}
	if anchorer.submitted != 1 {
		t.Errorf("anchor submissions = %d, want 1", anchorer.submitted)
	}
	stored := store.records[product.ID]
	if stored == nil || stored.AnchorStatus != entity.AnchorConfirmed {
		t.Error("anchor outcome not recorded in the store")
	}
}

func TestProductRegister_AnchorFailureLeavesPending(t *testing.T) {
	store := newFakeProducts()
	svc := NewProductService(store, &fakeAnchorer{err: errors.New("broker down")}, quietLogger())

	product, err := svc.Register(context.Background(), "acme", RegisterProductInput{
		Name:         "Widget",
		SerialNumber: "SN-1",
	})
	if err != nil {
		t.Fatalf("Register must not fail on anchoring errors: %v", err)
	}
	if product.AnchorStatus != entity.AnchorPending {
		t.Errorf("anchor status = %s, want pending after broker failure", product.AnchorStatus)
	}
	if store.records[product.ID] == nil {
		t.Error("product not persisted despite anchoring failure")
	}
}

func TestProductRegister_UniqueHashes(t *testing.T) {
	store := newFakeProducts()
	svc := NewProductService(store, &fakeAnchorer{}, quietLogger())
	input := RegisterProductInput{Name: "Widget", SerialNumber: "SN-1"}

	first, err := svc.Register(context.Background(), "acme", input)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	second, err := svc.Register(context.Background(), "acme", input)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if first.QRHash == second.QRHash {
		t.Error("identical inputs produced the same hash; product identity must make it unique")
	}
}

func TestProductVerify(t *testing.T) {
	store := newFakeProducts()
	svc := NewProductService(store, &fakeAnchorer{}, quietLogger())

	registered, err := svc.Register(context.Background(), "acme", RegisterProductInput{
		Name:         "Widget",
		SerialNumber: "SN-1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	found, err := svc.Verify(context.Background(), registered.QRHash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if found.ID != registered.ID {
		t.Errorf("verified product %s, want %s", found.ID, registered.ID)
	}

	if _, err := svc.Verify(context.Background(), "unknown-hash"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("unknown hash error = %v, want ErrNotFound", err)
	}
}

func newTemplateService(store TemplateStore, cache TemplateCacher, blobs *memBlobs) *TemplateService {
	return NewTemplateService(store, cache, blobs, noWords{}, "eng", quietLogger())
}

func TestTemplateCreate_ManualPlacement(t *testing.T) {
	store := newFakeTemplates()
	blobs := newMemBlobs()
	svc := newTemplateService(store, newFakeCache(), blobs)

	template, err := svc.Create(context.Background(), "acme", CreateTemplateInput{
		Name:            "Banner",
		ImageBytes:      whitePNG(t, 300, 300),
		ManualPlacement: &entity.Placement{X: 10, Y: 10, Width: 100, Height: 100},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	p := template.QRPlacement
	if p.Method != entity.MethodCSV || p.Confidence != 100 {
		t.Errorf("placement method/confidence = %s/%.0f, want csv/100", p.Method, p.Confidence)
	}
	if p.X != 10 || p.Width != 100 {
		t.Errorf("placement = %+v, want the literal coordinate", p)
	}
	if _, ok := blobs.blobs[template.StoragePath]; !ok {
		t.Error("template image not stored")
	}
	if store.records[template.ID] == nil {
		t.Error("template record not persisted")
	}
	if template.IsActive {
		t.Error("new template must start inactive")
	}
}

func TestTemplateCreate_ManualPlacementOutOfBounds(t *testing.T) {
	svc := newTemplateService(newFakeTemplates(), newFakeCache(), newMemBlobs())

	_, err := svc.Create(context.Background(), "acme", CreateTemplateInput{
		Name:            "Banner",
		ImageBytes:      whitePNG(t, 300, 300),
		ManualPlacement: &entity.Placement{X: 250, Y: 250, Width: 100, Height: 100},
	})
	if err == nil {
		t.Error("expected error for manual placement outside the image")
	}
}

func TestTemplateCreate_FallsBackToDefault(t *testing.T) {
	svc := newTemplateService(newFakeTemplates(), newFakeCache(), newMemBlobs())

	template, err := svc.Create(context.Background(), "acme", CreateTemplateInput{
		Name:       "Banner",
		ImageBytes: whitePNG(t, 1000, 1000),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	p := template.QRPlacement
	if p.Method != entity.MethodDefault {
		t.Errorf("method = %s, want default fallback", p.Method)
	}
	if p.X != 400 || p.Y != 400 || p.Width != 200 || p.Height != 200 {
		t.Errorf("placement = %+v, want centered {400,400,200,200}", p)
	}
}

func TestTemplateActivate_InvalidatesCache(t *testing.T) {
	store := newFakeTemplates()
	cache := newFakeCache()
	svc := newTemplateService(store, cache, newMemBlobs())

	template, err := svc.Create(context.Background(), "acme", CreateTemplateInput{
		Name:       "Banner",
		ImageBytes: whitePNG(t, 300, 300),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Activate(context.Background(), "acme", template.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if cache.invalidations != 1 {
		t.Errorf("cache invalidations = %d, want 1", cache.invalidations)
	}

	if err := svc.Activate(context.Background(), "acme", "missing"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("missing template error = %v, want ErrNotFound", err)
	}
}

func TestActiveTemplate_CachesOnMiss(t *testing.T) {
	store := newFakeTemplates()
	cache := newFakeCache()
	svc := newTemplateService(store, cache, newMemBlobs())

	created, err := svc.Create(context.Background(), "acme", CreateTemplateInput{
		Name:       "Banner",
		ImageBytes: whitePNG(t, 300, 300),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Activate(context.Background(), "acme", created.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	active, err := svc.ActiveTemplate(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ActiveTemplate failed: %v", err)
	}
	if active.ID != created.ID {
		t.Errorf("active template = %s, want %s", active.ID, created.ID)
	}
	if cache.entries["acme"] == nil {
		t.Error("database hit not written back to the cache")
	}
}

func TestActiveTemplate_NoneActive(t *testing.T) {
	svc := newTemplateService(newFakeTemplates(), newFakeCache(), newMemBlobs())

	_, err := svc.ActiveTemplate(context.Background(), "acme")
	if !errors.Is(err, entity.ErrNoActiveTemplate) {
		t.Errorf("error = %v, want ErrNoActiveTemplate", err)
	}
}

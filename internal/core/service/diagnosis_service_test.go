package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubDiagnosisRepo struct {
	byID          map[string]*domain.Diagnosis
	order         []string // insertion order
	completeCalls int
	err           error
	createErr     error
}

func newStubDiagnosisRepo() *stubDiagnosisRepo {
	return &stubDiagnosisRepo{byID: make(map[string]*domain.Diagnosis)}
}

func cloneDiagnosis(d *domain.Diagnosis) *domain.Diagnosis {
	clone := *d
	return &clone
}

func (r *stubDiagnosisRepo) Create(_ context.Context, d *domain.Diagnosis) error {
	if r.err != nil {
		return r.err
	}
	if r.createErr != nil {
		return r.createErr
	}
	d.ID = primitive.NewObjectID().Hex()
	r.byID[d.ID] = cloneDiagnosis(d)
	r.order = append(r.order, d.ID)
	return nil
}

func (r *stubDiagnosisRepo) FindByID(_ context.Context, id string) (*domain.Diagnosis, error) {
	if r.err != nil {
		return nil, r.err
	}
	d, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrDiagnosisNotFound
	}
	return cloneDiagnosis(d), nil
}

// Complete mirrors the conditional update of the real store.
func (r *stubDiagnosisRepo) Complete(_ context.Context, id, userID string, symptoms domain.Symptoms, results *domain.Results) error {
	r.completeCalls++
	if r.err != nil {
		return r.err
	}
	d, ok := r.byID[id]
	if !ok || d.UserID != userID || d.Results != nil {
		return domain.ErrAlreadySubmitted
	}
	d.Symptoms = symptoms
	d.Results = results
	return nil
}

func (r *stubDiagnosisRepo) ListByUser(_ context.Context, userID string) ([]*domain.Diagnosis, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []*domain.Diagnosis{}
	for i := len(r.order) - 1; i >= 0; i-- {
		d := r.byID[r.order[i]]
		if d.UserID == userID {
			out = append(out, cloneDiagnosis(d))
		}
	}
	return out, nil
}

type stubImageStore struct {
	blobs   map[string][]byte
	types   map[string]string
	saveErr error
	delErr  error
	deleted []string
}

func newStubImageStore() *stubImageStore {
	return &stubImageStore{blobs: make(map[string][]byte), types: make(map[string]string)}
}

func (s *stubImageStore) Save(_ context.Context, key, contentType string, _ int64, body io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.blobs[key] = b
	s.types[key] = contentType
	return nil
}

func (s *stubImageStore) Open(_ context.Context, key string) (*ports.StoredImage, error) {
	b, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return &ports.StoredImage{
		Body:        io.NopCloser(bytes.NewReader(b)),
		ContentType: s.types[key],
		Size:        int64(len(b)),
	}, nil
}

func (s *stubImageStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.deleted = append(s.deleted, key)
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.blobs, key)
	delete(s.types, key)
	return nil
}

type stubClassifier struct {
	results  *domain.Results
	err      error
	calls    int
	gotImage []byte
	gotInput ports.ClassifyInput
}

func (c *stubClassifier) Classify(_ context.Context, in ports.ClassifyInput) (*domain.Results, error) {
	c.calls++
	c.gotInput = in
	c.gotImage, _ = io.ReadAll(in.Image)
	return c.results, c.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const (
	alice = "64b000000000000000000a11"
	bob   = "64b000000000000000000b0b"
)

func sampleResults() *domain.Results {
	return &domain.Results{
		Predictions: []domain.Condition{
			{Name: "Eczema", Probability: 0.65},
			{Name: "Psoriasis", Probability: 0.20},
			{Name: "Contact Dermatitis", Probability: 0.30},
		},
		Severity:        "Moderate",
		Recommendations: []string{"Keep the affected area clean and dry"},
	}
}

type diagFixture struct {
	repo       *stubDiagnosisRepo
	images     *stubImageStore
	classifier *stubClassifier
	svc        *DiagnosisService
}

func newDiagFixture() *diagFixture {
	f := &diagFixture{
		repo:       newStubDiagnosisRepo(),
		images:     newStubImageStore(),
		classifier: &stubClassifier{results: sampleResults()},
	}
	f.svc = NewDiagnosisService(f.repo, f.images, f.classifier, 1024, zerolog.Nop())
	return f
}

func imageInput(owner string, data string) ports.UploadImageInput {
	return ports.UploadImageInput{
		OwnerID:     owner,
		Filename:    "rash.JPG",
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
		Body:        strings.NewReader(data),
	}
}

func (f *diagFixture) upload(t *testing.T, owner string) string {
	t.Helper()
	res, err := f.svc.UploadImage(context.Background(), imageInput(owner, "jpeg-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return res.DiagnosisID
}

// ---------------------------------------------------------------------------
// UploadImage
// ---------------------------------------------------------------------------

func TestDiagnosisService_Upload_CreatesDiagnosis(t *testing.T) {
	f := newDiagFixture()

	res, err := f.svc.UploadImage(context.Background(), imageInput(alice, "jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.repo.byID[res.DiagnosisID]
	if stored == nil {
		t.Fatal("diagnosis not persisted")
	}
	if stored.UserID != alice {
		t.Errorf("owner = %q, want %q", stored.UserID, alice)
	}
	if stored.Status() != domain.StatusCreated {
		t.Errorf("status = %q, want %q", stored.Status(), domain.StatusCreated)
	}
	if stored.Symptoms != nil || stored.Results != nil {
		t.Error("new diagnosis must not carry symptoms or results")
	}
	if !strings.HasPrefix(res.ImageURL, ImageURLPrefix) || !strings.HasSuffix(res.ImageURL, ".jpg") {
		t.Errorf("unexpected image url %q", res.ImageURL)
	}
	if res.ImageURL != ImageURLPrefix+stored.ImageKey {
		t.Errorf("image url %q does not reference key %q", res.ImageURL, stored.ImageKey)
	}
	if string(f.images.blobs[stored.ImageKey]) != "jpeg-bytes" {
		t.Error("image bytes not stored under the diagnosis key")
	}
}

func TestDiagnosisService_Upload_Rejections(t *testing.T) {
	cases := map[string]ports.UploadImageInput{
		"empty": imageInput(alice, ""),
		"nil body": {
			OwnerID: alice, ContentType: "image/png", Size: 10,
		},
		"not an image": {
			OwnerID: alice, ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf"),
		},
		"too large": imageInput(alice, strings.Repeat("x", 2048)),
	}

	for name, in := range cases {
		f := newDiagFixture()
		_, err := f.svc.UploadImage(context.Background(), in)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
		if len(f.repo.byID) != 0 || len(f.images.blobs) != 0 {
			t.Errorf("%s: nothing may be stored on rejection", name)
		}
	}
}

func TestDiagnosisService_Upload_ImageStoreError(t *testing.T) {
	f := newDiagFixture()
	f.images.saveErr = errors.New("bucket unavailable")

	if _, err := f.svc.UploadImage(context.Background(), imageInput(alice, "x")); err == nil {
		t.Fatal("expected error when image store fails")
	}
	if len(f.repo.byID) != 0 {
		t.Error("no diagnosis may be created without stored image")
	}
}

func TestDiagnosisService_Upload_RecordFailureDiscardsImage(t *testing.T) {
	f := newDiagFixture()

	// A cancelled request must not prevent the cleanup.
	ctx, cancel := context.WithCancel(context.Background())
	f.repo.createErr = fmt.Errorf("insert diagnosis: %w", domain.ErrStore)
	cancel()

	_, err := f.svc.UploadImage(ctx, imageInput(alice, "jpeg-bytes"))
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if len(f.images.deleted) != 1 {
		t.Fatalf("expected one delete, got %v", f.images.deleted)
	}
	if len(f.images.blobs) != 0 {
		t.Error("stored image must be removed when the diagnosis is not recorded")
	}
}

func TestDiagnosisService_Upload_DiscardFailureKeepsOriginalError(t *testing.T) {
	f := newDiagFixture()
	f.repo.createErr = fmt.Errorf("insert diagnosis: %w", domain.ErrStore)
	f.images.delErr = errors.New("bucket unavailable")

	_, err := f.svc.UploadImage(context.Background(), imageInput(alice, "jpeg-bytes"))
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected the create error, got %v", err)
	}
	if len(f.images.deleted) != 1 {
		t.Fatalf("expected a delete attempt, got %v", f.images.deleted)
	}
}

// ---------------------------------------------------------------------------
// SubmitSymptoms
// ---------------------------------------------------------------------------

func TestDiagnosisService_Submit_Completes(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)
	symptoms := domain.Symptoms{"itching": "severe"}

	res, err := f.svc.SubmitSymptoms(context.Background(), id, alice, symptoms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DiagnosisID != id {
		t.Errorf("diagnosis id = %q, want %q", res.DiagnosisID, id)
	}
	if len(res.Results.Predictions) == 0 || res.Results.Severity == "" {
		t.Errorf("expected ranked conditions and severity, got %+v", res.Results)
	}

	stored := f.repo.byID[id]
	if stored.Status() != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", stored.Status())
	}
	if !reflect.DeepEqual(stored.Symptoms, symptoms) {
		t.Errorf("symptoms not stored verbatim: %+v", stored.Symptoms)
	}
	if string(f.classifier.gotImage) != "jpeg-bytes" || f.classifier.gotInput.ContentType != "image/jpeg" {
		t.Error("classifier must receive the uploaded image")
	}
	if !reflect.DeepEqual(f.classifier.gotInput.Symptoms, symptoms) {
		t.Error("classifier must receive the symptom payload")
	}
}

func TestDiagnosisService_Submit_StoresClassifierOutputUnmodified(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	res, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"duration": "1-4weeks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Probabilities are independent scores and must not be normalized.
	var sum float64
	for _, c := range res.Results.Predictions {
		sum += c.Probability
	}
	if sum == 1 {
		t.Fatal("fixture should not sum to 1")
	}
	if !reflect.DeepEqual(res.Results, sampleResults()) {
		t.Errorf("results altered: %+v", res.Results)
	}
	if !reflect.DeepEqual(f.repo.byID[id].Results, sampleResults()) {
		t.Error("stored results differ from classifier output")
	}
}

func TestDiagnosisService_Submit_InvalidID(t *testing.T) {
	f := newDiagFixture()
	f.repo.err = errors.New("store must not be touched")

	_, err := f.svc.SubmitSymptoms(context.Background(), "not-an-id", alice, domain.Symptoms{"a": 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDiagnosisService_Submit_EmptySymptoms(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	if _, err := f.svc.SubmitSymptoms(context.Background(), id, alice, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDiagnosisService_Submit_EmptySymptomsChecksAccessFirst(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	if _, err := f.svc.SubmitSymptoms(context.Background(), id, bob, domain.Symptoms{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other user: expected ErrForbidden, got %v", err)
	}
	missing := primitive.NewObjectID().Hex()
	if _, err := f.svc.SubmitSymptoms(context.Background(), missing, alice, domain.Symptoms{}); !errors.Is(err, domain.ErrDiagnosisNotFound) {
		t.Fatalf("missing diagnosis: expected ErrDiagnosisNotFound, got %v", err)
	}
}

func TestDiagnosisService_Submit_NotFound(t *testing.T) {
	f := newDiagFixture()

	_, err := f.svc.SubmitSymptoms(context.Background(), primitive.NewObjectID().Hex(), alice, domain.Symptoms{"a": 1})
	if !errors.Is(err, domain.ErrDiagnosisNotFound) {
		t.Fatalf("expected ErrDiagnosisNotFound, got %v", err)
	}
}

func TestDiagnosisService_Submit_OtherUserIsForbidden(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)
	before := *f.repo.byID[id]

	_, err := f.svc.SubmitSymptoms(context.Background(), id, bob, domain.Symptoms{"itching": "mild"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if !reflect.DeepEqual(*f.repo.byID[id], before) {
		t.Error("record must not change on forbidden submit")
	}
	if f.classifier.calls != 0 || f.repo.completeCalls != 0 {
		t.Error("forbidden submit must not reach the classifier or the store write")
	}
}

func TestDiagnosisService_Submit_SecondSubmitRejected(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	if _, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"itching": "severe"}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	_, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"itching": "none"})
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if f.repo.byID[id].Symptoms["itching"] != "severe" {
		t.Error("second submit must not overwrite symptoms")
	}
}

func TestDiagnosisService_Submit_ClassifierFailure(t *testing.T) {
	f := newDiagFixture()
	f.classifier.err = errors.New("model offline")
	id := f.upload(t, alice)

	_, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"a": 1})
	if !errors.Is(err, domain.ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
	if f.repo.byID[id].Status() != domain.StatusCreated {
		t.Error("failed classification must leave the diagnosis in created state")
	}
}

func TestDiagnosisService_Submit_ClassifierReturnsNothing(t *testing.T) {
	f := newDiagFixture()
	f.classifier.results = nil
	id := f.upload(t, alice)

	if _, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"a": 1}); !errors.Is(err, domain.ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetResults
// ---------------------------------------------------------------------------

func TestDiagnosisService_GetResults_NotReady(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	if _, err := f.svc.GetResults(context.Background(), id, alice); !errors.Is(err, domain.ErrResultsNotReady) {
		t.Fatalf("expected ErrResultsNotReady, got %v", err)
	}
}

func TestDiagnosisService_GetResults_MatchesSubmit(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)

	submitted, err := f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"itching": "severe"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	got, err := f.svc.GetResults(context.Background(), id, alice)
	if err != nil {
		t.Fatalf("get results failed: %v", err)
	}
	if !reflect.DeepEqual(got, submitted.Results) {
		t.Errorf("results differ:\n got  %+v\n want %+v", got, submitted.Results)
	}
}

func TestDiagnosisService_GetResults_Errors(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)
	_, _ = f.svc.SubmitSymptoms(context.Background(), id, alice, domain.Symptoms{"a": 1})

	if _, err := f.svc.GetResults(context.Background(), id, bob); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.GetResults(context.Background(), primitive.NewObjectID().Hex(), alice); !errors.Is(err, domain.ErrDiagnosisNotFound) {
		t.Errorf("expected ErrDiagnosisNotFound, got %v", err)
	}
	if _, err := f.svc.GetResults(context.Background(), "xyz", alice); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetHistory
// ---------------------------------------------------------------------------

func TestDiagnosisService_History_Empty(t *testing.T) {
	f := newDiagFixture()

	items, err := f.svc.GetHistory(context.Background(), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", items)
	}
}

func TestDiagnosisService_History_NewestFirstAndScoped(t *testing.T) {
	f := newDiagFixture()
	d1 := f.upload(t, alice)
	_ = f.upload(t, bob)
	d2 := f.upload(t, alice)
	_, _ = f.svc.SubmitSymptoms(context.Background(), d1, alice, domain.Symptoms{"a": 1})

	items, err := f.svc.GetHistory(context.Background(), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != d2 || items[1].ID != d1 {
		t.Fatalf("expected [%s %s], got [%s %s]", d2, d1, items[0].ID, items[1].ID)
	}
	if items[0].HasResults || items[0].Status != domain.StatusCreated {
		t.Errorf("d2 should be pending: %+v", items[0])
	}
	if !items[1].HasResults || !items[1].HasSymptoms || items[1].Status != domain.StatusCompleted {
		t.Errorf("d1 should be completed: %+v", items[1])
	}
	if items[1].Date.IsZero() || items[1].ImageURL == "" {
		t.Error("history items need a date and image url")
	}
}

// ---------------------------------------------------------------------------
// Images and keys
// ---------------------------------------------------------------------------

func TestDiagnosisService_OpenImage(t *testing.T) {
	f := newDiagFixture()
	id := f.upload(t, alice)
	key := f.repo.byID[id].ImageKey

	img, err := f.svc.OpenImage(context.Background(), "/"+key)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer img.Body.Close()
	if img.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", img.ContentType)
	}

	for _, bad := range []string{"", "../etc/passwd", "missing.png"} {
		if _, err := f.svc.OpenImage(context.Background(), bad); !errors.Is(err, domain.ErrImageNotFound) {
			t.Errorf("OpenImage(%q): expected ErrImageNotFound, got %v", bad, err)
		}
	}
}

func TestNewImageKey(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	key := newImageKey(now, "Photo.PNG")
	if !strings.HasPrefix(key, "2026/03/07/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}
	if newImageKey(now, "a.png") == newImageKey(now, "a.png") {
		t.Error("keys must be unique")
	}
	if k := newImageKey(now, "noext"); strings.Contains(k[len("2026/03/07/"):], ".") {
		t.Errorf("unexpected extension in %q", k)
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenario through the service layer
// ---------------------------------------------------------------------------

func TestScenario_AliceAndBob(t *testing.T) {
	authRepo := newStubAuthRepo()
	auth := newAuthSvc(authRepo, newStubRevoker())
	f := newDiagFixture()
	ctx := context.Background()

	if _, err := auth.Register(ctx, "Alice", "alice@example.com", "pw123456"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	login, err := auth.Login(ctx, "alice@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	bobReg, err := auth.Register(ctx, "Bob", "bob@example.com", "pw654321")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	up, err := f.svc.UploadImage(ctx, imageInput(login.User.ID, "img"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	sub, err := f.svc.SubmitSymptoms(ctx, up.DiagnosisID, login.User.ID, domain.Symptoms{"itching": "severe"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := f.svc.GetResults(ctx, up.DiagnosisID, login.User.ID)
	if err != nil || !reflect.DeepEqual(got, sub.Results) {
		t.Fatalf("alice results mismatch: %v", err)
	}
	if _, err := f.svc.GetResults(ctx, up.DiagnosisID, bobReg.User.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("bob must be forbidden, got %v", err)
	}
}

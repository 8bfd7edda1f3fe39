package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dethiai/dethiai-backend/internal/model"
	"github.com/dethiai/dethiai-backend/internal/queue"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type fakeDocRepo struct {
	docs map[uuid.UUID]*model.Document
}

func (f *fakeDocRepo) Create(_ context.Context, d *model.Document) error {
	f.docs[d.ID] = d
	return nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocRepo) ListByOwnerPaginated(_ context.Context, ownerID string, limit, offset int) ([]model.Document, int, error) {
	var out []model.Document
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, len(out), nil
}

func (f *fakeDocRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.docs, id)
	return nil
}

type fakeElemRepo struct {
	// question index -> element
	questions map[int]model.Element
}

func (f *fakeElemRepo) ListByDocument(_ context.Context, _ uuid.UUID) ([]model.Element, error) {
	return f.ListQuestions(context.Background(), uuid.Nil)
}

func (f *fakeElemRepo) ListQuestions(_ context.Context, _ uuid.UUID) ([]model.Element, error) {
	var out []model.Element
	for _, el := range f.questions {
		out = append(out, el)
	}
	return out, nil
}

func (f *fakeElemRepo) QuestionsByIndices(_ context.Context, _ uuid.UUID, indices []int) ([]model.Element, error) {
	var out []model.Element
	for _, idx := range indices {
		if el, ok := f.questions[idx]; ok {
			out = append(out, el)
		}
	}
	return out, nil
}

type createdExam struct {
	exam      *model.GeneratedExam
	snapshots []model.QuestionSnapshot
	completed int
	status    model.Status
	failed    map[int]string
}

type fakeExamRepo struct {
	created map[uuid.UUID]*createdExam
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{created: make(map[uuid.UUID]*createdExam)}
}

func (f *fakeExamRepo) CreateWithPlaceholders(_ context.Context, exam *model.GeneratedExam, snapshots []model.QuestionSnapshot) error {
	f.created[exam.ID] = &createdExam{
		exam:      exam,
		snapshots: snapshots,
		status:    exam.Status,
		failed:    make(map[int]string),
	}
	return nil
}

func (f *fakeExamRepo) GetByID(_ context.Context, id uuid.UUID) (*model.GeneratedExam, error) {
	entry, ok := f.created[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *entry.exam
	copied.Status = entry.status
	copied.Completed = entry.completed
	return &copied, nil
}

func (f *fakeExamRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]model.GeneratedExam, error) {
	var out []model.GeneratedExam
	for _, entry := range f.created {
		if entry.exam.DocumentID == documentID {
			out = append(out, *entry.exam)
		}
	}
	return out, nil
}

func (f *fakeExamRepo) ListQuestions(_ context.Context, examID uuid.UUID) ([]model.GeneratedQuestion, error) {
	return nil, nil
}

func (f *fakeExamRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.created, id)
	return nil
}

func (f *fakeExamRepo) FailQuestion(_ context.Context, examID uuid.UUID, index int, msg string) (bool, error) {
	entry, ok := f.created[examID]
	if !ok {
		return false, nil
	}
	entry.failed[index] = msg
	return true, nil
}

func (f *fakeExamRepo) IncrementCompleted(_ context.Context, examID uuid.UUID) (int, int, error) {
	entry, ok := f.created[examID]
	if !ok {
		return 0, 0, pgx.ErrNoRows
	}
	entry.completed++
	return entry.completed, entry.exam.Total, nil
}

func (f *fakeExamRepo) FinishExam(_ context.Context, examID uuid.UUID) (bool, error) {
	entry, ok := f.created[examID]
	if !ok || entry.status != model.StatusProcessing {
		return false, nil
	}
	entry.status = model.StatusDone
	return true, nil
}

type fakeGenQueue struct {
	payloads  []queue.GeneratePayload
	failAfter int // fail every enqueue past this count; -1 never fails
}

func (f *fakeGenQueue) EnqueueGenerate(_ context.Context, p queue.GeneratePayload) error {
	if f.failAfter >= 0 && len(f.payloads) >= f.failAfter {
		return errors.New("queue unavailable")
	}
	f.payloads = append(f.payloads, p)
	return nil
}

// ----------------------------------------------------------------

func intPtr(v int) *int { return &v }

func extractedDoc(ownerID string) *model.Document {
	return &model.Document{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Filename:      "algebra.pdf",
		OCRStatus:     model.StatusDone,
		ExtractStatus: model.StatusDone,
	}
}

func questionFixture(indices ...int) map[int]model.Element {
	out := make(map[int]model.Element, len(indices))
	for _, idx := range indices {
		out[idx] = model.Element{
			Position:      idx,
			QuestionIndex: intPtr(idx),
			Type:          model.ElementTypeShortAnswer,
			Content:       "question",
		}
	}
	return out
}

func newGenerationEnv(doc *model.Document, questions map[int]model.Element) (*GenerationService, *fakeExamRepo, *fakeGenQueue) {
	docs := &fakeDocRepo{docs: make(map[uuid.UUID]*model.Document)}
	if doc != nil {
		docs.docs[doc.ID] = doc
	}
	exams := newFakeExamRepo()
	q := &fakeGenQueue{failAfter: -1}
	svc := NewGenerationService(docs, &fakeElemRepo{questions: questions}, exams, q, zerolog.Nop())
	return svc, exams, q
}

func TestStartRejectsUnfinishedExtraction(t *testing.T) {
	doc := extractedDoc("owner")
	doc.ExtractStatus = model.StatusProcessing
	svc, exams, _ := newGenerationEnv(doc, questionFixture(0))

	_, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0},
		TargetCount:     1,
	})
	if !errors.Is(err, ErrNotExtracted) {
		t.Fatalf("err = %v, want ErrNotExtracted", err)
	}
	if len(exams.created) != 0 {
		t.Error("request created despite unfinished extraction")
	}
}

func TestStartRejectsUnknownIndexBeforeAnyWrite(t *testing.T) {
	doc := extractedDoc("owner")
	svc, exams, q := newGenerationEnv(doc, questionFixture(0, 1, 2))

	_, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0, 99, 1},
		TargetCount:     3,
	})
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
	if len(exams.created) != 0 {
		t.Error("request created despite invalid selection")
	}
	if len(q.payloads) != 0 {
		t.Error("items enqueued despite invalid selection")
	}
}

func TestStartEnforcesOwnership(t *testing.T) {
	doc := extractedDoc("owner")
	svc, _, _ := newGenerationEnv(doc, questionFixture(0))

	_, err := svc.Start(context.Background(), "intruder", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0},
		TargetCount:     1,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestStartDedupesAndCapsSelection(t *testing.T) {
	doc := extractedDoc("owner")
	svc, exams, q := newGenerationEnv(doc, questionFixture(1, 2, 3))

	exam, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{3, 1, 3, 2},
		TargetCount:     2,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if exam.Total != 2 {
		t.Errorf("total = %d, want 2", exam.Total)
	}

	entry := exams.created[exam.ID]
	if entry == nil {
		t.Fatal("request not created")
	}
	wantSources := []int{3, 1}
	if len(entry.snapshots) != len(wantSources) {
		t.Fatalf("snapshots = %d, want %d", len(entry.snapshots), len(wantSources))
	}
	for i, snap := range entry.snapshots {
		if snap.Index != wantSources[i] {
			t.Errorf("snapshot %d sources question %d, want %d", i, snap.Index, wantSources[i])
		}
	}
	if len(q.payloads) != 2 {
		t.Fatalf("enqueued %d items, want 2", len(q.payloads))
	}
	for i, p := range q.payloads {
		if p.ExamID != exam.ID || p.QuestionIndex != i {
			t.Errorf("payload %d addresses (%s, %d)", i, p.ExamID, p.QuestionIndex)
		}
	}
}

func TestStartDefaultsTitleFromFilename(t *testing.T) {
	doc := extractedDoc("owner")
	svc, _, _ := newGenerationEnv(doc, questionFixture(0))

	exam, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0},
		TargetCount:     1,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if exam.Title != "Generated from algebra.pdf" {
		t.Errorf("title = %q", exam.Title)
	}
}

func TestStartAccountsEnqueueFailures(t *testing.T) {
	doc := extractedDoc("owner")
	svc, exams, q := newGenerationEnv(doc, questionFixture(0, 1))
	q.failAfter = 1 // second enqueue fails

	exam, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0, 1},
		TargetCount:     2,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	entry := exams.created[exam.ID]
	if _, ok := entry.failed[1]; !ok {
		t.Error("unenqueued item not marked failed")
	}
	if entry.completed != 1 {
		t.Errorf("completed = %d, want 1 (failed item accounted)", entry.completed)
	}
	if entry.status != model.StatusProcessing {
		t.Errorf("status = %s, want processing with one in-flight item", entry.status)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	doc := extractedDoc("owner")
	svc, exams, _ := newGenerationEnv(doc, questionFixture(0))

	exam, err := svc.Start(context.Background(), "owner", doc.ID, &model.StartGenerationRequest{
		SelectedIndices: []int{0},
		TargetCount:     1,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := svc.Delete(context.Background(), "intruder", exam.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), "owner", exam.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if len(exams.created) != 0 {
		t.Error("request survived delete")
	}
}

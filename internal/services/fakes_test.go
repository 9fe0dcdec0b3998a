package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"certflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fixedClock returns a now func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeEventRepo is an in-memory EventRepository for tests.
type fakeEventRepo struct {
	byID   map[string]*domain.Event
	nextID int
	err    error // if set, every method returns this error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[string]*domain.Event), nextID: 1}
}

func (f *fakeEventRepo) addEvent(name string, date time.Time) *domain.Event {
	e := &domain.Event{Name: name, Date: date, CreatedBy: "user-1"}
	_ = f.Create(context.Background(), e)
	return e
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	e.ID = fmt.Sprintf("ev-%d", f.nextID)
	f.nextID++
	f.byID[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListAll(ctx context.Context) ([]*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Event, 0, len(f.byID))
	for i := 1; i < f.nextID; i++ {
		if e, ok := f.byID[fmt.Sprintf("ev-%d", i)]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) ListByDay(ctx context.Context, day time.Time, loc *time.Location) ([]*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := day.In(loc)
	var out []*domain.Event
	for i := 1; i < f.nextID; i++ {
		e, ok := f.byID[fmt.Sprintf("ev-%d", i)]
		if !ok {
			continue
		}
		d := e.Date.In(loc)
		if d.Year() == want.Year() && d.Month() == want.Month() && d.Day() == want.Day() {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeParticipantRepo is an in-memory ParticipantRepository for tests.
type fakeParticipantRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Participant
	nextID  int
	err     error // if set, Create/GetByID/List return this error
	markErr error // if set, MarkDelivered returns this error
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{byID: make(map[string]*domain.Participant), nextID: 1}
}

func (f *fakeParticipantRepo) addParticipant(eventID, name, email string) *domain.Participant {
	p := &domain.Participant{Name: name, Email: email, EventID: &eventID, UploadedBy: "user-1"}
	_ = f.Create(context.Background(), p)
	return p
}

func (f *fakeParticipantRepo) Create(ctx context.Context, p *domain.Participant) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = fmt.Sprintf("pt-%d", f.nextID)
	f.nextID++
	f.byID[p.ID] = p
	return nil
}

func (f *fakeParticipantRepo) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeParticipantRepo) ListUnsentCertificates(ctx context.Context, eventID string, ids []string) ([]*domain.Participant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []*domain.Participant
	for i := 1; i < f.nextID; i++ {
		p, ok := f.byID[fmt.Sprintf("pt-%d", i)]
		if !ok || p.CertificateSent {
			continue
		}
		if p.EventID == nil || *p.EventID != eventID {
			continue
		}
		if len(ids) > 0 && !wanted[p.ID] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeParticipantRepo) MarkDelivered(ctx context.Context, id string, kind domain.DeliveryKind, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch kind {
	case domain.DeliveryEmail:
		p.EmailSent = true
		p.EmailSentAt = &at
	case domain.DeliveryCertificate:
		p.CertificateSent = true
		p.CertificateSentAt = &at
	}
	return nil
}

// fakeTemplateRepo is an in-memory CertificateTemplateRepository for tests.
type fakeTemplateRepo struct {
	byEventID map[string]*domain.CertificateTemplate
	generated map[string][]domain.GeneratedCertificate
	appends   int
	err       error
	appendErr error
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{
		byEventID: make(map[string]*domain.CertificateTemplate),
		generated: make(map[string][]domain.GeneratedCertificate),
	}
}

func (f *fakeTemplateRepo) addTemplate(eventID string) *domain.CertificateTemplate {
	t := &domain.CertificateTemplate{
		ID:            "tmpl-" + eventID,
		EventID:       eventID,
		TemplateImage: "template.png",
		TemplateType:  domain.TemplateClassic,
	}
	f.byEventID[eventID] = t
	return t
}

func (f *fakeTemplateRepo) Create(ctx context.Context, t *domain.CertificateTemplate) error {
	if f.err != nil {
		return f.err
	}
	f.byEventID[t.EventID] = t
	return nil
}

func (f *fakeTemplateRepo) GetByEventID(ctx context.Context, eventID string) (*domain.CertificateTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.byEventID[eventID]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateRepo) AppendGenerated(ctx context.Context, templateID string, entries []domain.GeneratedCertificate) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends++
	f.generated[templateID] = append(f.generated[templateID], entries...)
	return nil
}

func (f *fakeTemplateRepo) ListGenerated(ctx context.Context, templateID string) ([]domain.GeneratedCertificate, error) {
	return f.generated[templateID], nil
}

// fakeEmailTemplateRepo is an in-memory EmailTemplateRepository for tests.
type fakeEmailTemplateRepo struct {
	byID map[string]*domain.EmailTemplate
	err  error
}

func newFakeEmailTemplateRepo() *fakeEmailTemplateRepo {
	return &fakeEmailTemplateRepo{byID: make(map[string]*domain.EmailTemplate)}
}

func (f *fakeEmailTemplateRepo) addTemplate(id, subject, body string) *domain.EmailTemplate {
	t := &domain.EmailTemplate{ID: id, Name: id, Subject: subject, Body: body}
	f.byID[id] = t
	return t
}

func (f *fakeEmailTemplateRepo) Create(ctx context.Context, t *domain.EmailTemplate) error {
	if f.err != nil {
		return f.err
	}
	f.byID[t.ID] = t
	return nil
}

func (f *fakeEmailTemplateRepo) GetByID(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

// fakeScheduledEmailRepo is an in-memory ScheduledEmailRepository for tests.
type fakeScheduledEmailRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.ScheduledEmail
	nextID int
	err    error
}

func newFakeScheduledEmailRepo() *fakeScheduledEmailRepo {
	return &fakeScheduledEmailRepo{byID: make(map[string]*domain.ScheduledEmail), nextID: 1}
}

func (f *fakeScheduledEmailRepo) addScheduled(templateID string, recipients []string, at time.Time) *domain.ScheduledEmail {
	s := &domain.ScheduledEmail{
		TemplateID:   templateID,
		Recipients:   recipients,
		ScheduleDate: at,
		Status:       domain.ScheduleStatusPending,
		CreatedBy:    "user-1",
	}
	_ = f.Create(context.Background(), s)
	return s
}

func (f *fakeScheduledEmailRepo) Create(ctx context.Context, s *domain.ScheduledEmail) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = fmt.Sprintf("se-%d", f.nextID)
	f.nextID++
	f.byID[s.ID] = s
	return nil
}

func (f *fakeScheduledEmailRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledEmail, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byID[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeScheduledEmailRepo) ListPending(ctx context.Context) ([]*domain.ScheduledEmail, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ScheduledEmail
	for i := 1; i < f.nextID; i++ {
		s, ok := f.byID[fmt.Sprintf("se-%d", i)]
		if ok && s.Status == domain.ScheduleStatusPending {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeScheduledEmailRepo) UpdateStatus(ctx context.Context, id string, status domain.ScheduledEmailStatus, sentAt *time.Time, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok || s.Status != domain.ScheduleStatusPending {
		return domain.ErrNotFound
	}
	s.Status = status
	s.SentAt = sentAt
	s.ErrorMessage = errorMessage
	return nil
}

func (f *fakeScheduledEmailRepo) status(id string) domain.ScheduledEmailStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

// fakeActivityLogRepo records created audit entries.
type fakeActivityLogRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityLog
	err     error
}

func (f *fakeActivityLogRepo) Create(ctx context.Context, l *domain.ActivityLog) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, l)
	return nil
}

func (f *fakeActivityLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// fakeNotifier records published notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	published []domain.Notification
}

func (f *fakeNotifier) Publish(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, n)
}

func (f *fakeNotifier) byName(name string) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.published {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// fakeMailer records sends; failFor addresses return an error.
type fakeMailer struct {
	mu          sync.Mutex
	sent        []string // recipient addresses of plain sends
	attachments []string // recipient addresses of attachment sends
	failFor     map[string]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: make(map[string]bool)}
}

func (f *fakeMailer) Send(to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return fmt.Errorf("provider rejected %s", to)
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeMailer) SendWithAttachment(to, subject, html, attachmentName, attachmentPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return fmt.Errorf("provider rejected %s", to)
	}
	f.attachments = append(f.attachments, to)
	return nil
}

// passthroughRenderer returns the template text unchanged.
type passthroughRenderer struct {
	err error
}

func (p *passthroughRenderer) Render(text string, bindings map[string]any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return text, nil
}

// fakeGenerator returns deterministic paths; failFor participant IDs error.
type fakeGenerator struct {
	failFor map[string]bool
	calls   int
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{failFor: make(map[string]bool)}
}

func (f *fakeGenerator) Generate(p *domain.Participant, e *domain.Event, t *domain.CertificateTemplate) (string, string, error) {
	f.calls++
	if f.failFor[p.ID] {
		return "", "", fmt.Errorf("render failed for %s", p.ID)
	}
	return "/tmp/" + p.ID + ".pdf", "/certificates/" + p.ID + ".pdf", nil
}

// fakeDelivery implements domain.DeliveryService with configurable failures.
type fakeDelivery struct {
	mu           sync.Mutex
	certSends    []string // participant IDs of certificate sends
	failCertFor  map[string]bool
	failEmailFor map[string]bool
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{
		failCertFor:  make(map[string]bool),
		failEmailFor: make(map[string]bool),
	}
}

func (f *fakeDelivery) SendToParticipant(ctx context.Context, participantID string, template *domain.EmailTemplate, eventName string) domain.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEmailFor[participantID] {
		return domain.SendResult{ParticipantID: participantID, Success: false, Error: "send failed"}
	}
	return domain.SendResult{ParticipantID: participantID, Success: true}
}

func (f *fakeDelivery) SendBulk(ctx context.Context, participantIDs []string, template *domain.EmailTemplate, eventName string) []domain.SendResult {
	results := make([]domain.SendResult, 0, len(participantIDs))
	for _, id := range participantIDs {
		results = append(results, f.SendToParticipant(ctx, id, template, eventName))
	}
	return results
}

func (f *fakeDelivery) SendCertificate(ctx context.Context, participant *domain.Participant, event *domain.Event, attachmentPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCertFor[participant.ID] {
		return fmt.Errorf("send certificate failed for %s", participant.ID)
	}
	f.certSends = append(f.certSends, participant.ID)
	return nil
}

// fakeCertificates records RunForEvent calls for scheduler tests.
type fakeCertificates struct {
	mu      sync.Mutex
	runs    []string // event IDs
	results map[string]*domain.RunResult
	err     error
}

func newFakeCertificates() *fakeCertificates {
	return &fakeCertificates{results: make(map[string]*domain.RunResult)}
}

func (f *fakeCertificates) RunForEvent(ctx context.Context, eventID string, participantIDs []string) (*domain.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.runs = append(f.runs, eventID)
	if r, ok := f.results[eventID]; ok {
		return r, nil
	}
	return &domain.RunResult{Success: true}, nil
}

func (f *fakeCertificates) CheckAndRun(ctx context.Context, eventID string, participantIDs []string) (*domain.RunResult, error) {
	return f.RunForEvent(ctx, eventID, participantIDs)
}

func (f *fakeCertificates) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

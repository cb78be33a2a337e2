package booking

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/traverum/booking-service/internal/metrics"
	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/payment"
	"github.com/traverum/booking-service/internal/queue"
	"github.com/traverum/booking-service/internal/repository"
	"github.com/traverum/booking-service/internal/settlement"
	"github.com/traverum/booking-service/internal/token"
)

type memReservations struct {
	mu      sync.Mutex
	rows    map[string]model.Reservation
	catalog *memCatalog
}

func (m *memReservations) Create(_ context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = *r
	return nil
}

func (m *memReservations) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memReservations) Transition(_ context.Context, id string, from, to model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	m.rows[id] = r
	return nil
}

func (m *memReservations) MarkPaid(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.StatusConfirmed {
		return repository.ErrConflict
	}
	r.Status = model.StatusPendingPayment
	r.PaymentRef = &ref
	m.rows[id] = r
	return nil
}

func (m *memReservations) ListPendingBySupplier(_ context.Context, supplierID string) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.rows {
		if r.Status == model.StatusPending && m.catalog.experiences[r.ExperienceID].PartnerID == supplierID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponseDeadline.Before(out[j].ResponseDeadline) })
	return out, nil
}

type memCatalog struct {
	experiences map[string]model.Experience
	partners    map[string]model.Partner
}

func (m *memCatalog) GetExperience(_ context.Context, id string) (*model.Experience, error) {
	e, ok := m.experiences[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (m *memCatalog) GetPartner(_ context.Context, id string) (*model.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

type memSettlements struct {
	mu   sync.Mutex
	rows map[string]model.Settlement
}

func (m *memSettlements) Get(_ context.Context, id string) (model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Settlement{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memSettlements) Claim(_ context.Context, s model.Settlement, _ time.Duration) (model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[s.ReservationID]
	if ok && cur.Status == model.SettlementSucceeded {
		return cur, nil
	}
	if ok && cur.Status == model.SettlementProcessing {
		return model.Settlement{}, repository.ErrConflict
	}
	s.Attempts = cur.Attempts + 1
	m.rows[s.ReservationID] = s
	return s, nil
}

func (m *memSettlements) MarkSucceeded(_ context.Context, id, transferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rows[id]
	r.Status, r.TransferID = model.SettlementSucceeded, &transferID
	m.rows[id] = r
	return nil
}

func (m *memSettlements) MarkFailed(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rows[id]
	r.Status, r.FailureReason = model.SettlementFailed, &reason
	m.rows[id] = r
	return nil
}

type memPayouts struct {
	mu   sync.Mutex
	rows []model.HotelPayout
}

func (m *memPayouts) CreatePending(_ context.Context, p *model.HotelPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ReservationID == p.ReservationID {
			return nil
		}
	}
	m.rows = append(m.rows, *p)
	return nil
}

type fakeStripe struct {
	intents     []payment.IntentRequest
	transfers   []payment.TransferRequest
	refunds     []payment.RefundRequest
	transferErr error
	refundErr   error
}

func (f *fakeStripe) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	f.intents = append(f.intents, req)
	return payment.Intent{ID: "pi_" + req.ReservationID, ClientSecret: "secret"}, nil
}

func (f *fakeStripe) Transfer(_ context.Context, req payment.TransferRequest) (string, error) {
	f.transfers = append(f.transfers, req)
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return "tr_" + req.ReservationID, nil
}

func (f *fakeStripe) Refund(_ context.Context, req payment.RefundRequest) (string, error) {
	f.refunds = append(f.refunds, req)
	if f.refundErr != nil {
		return "", f.refundErr
	}
	return "re_" + req.ReservationID, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	svc          *Service
	reservations *memReservations
	catalog      *memCatalog
	settlements  *memSettlements
	payouts      *memPayouts
	stripe       *fakeStripe
	events       *recordingPublisher
	tokens       *token.Service
	clock        time.Time
}

func strp(s string) *string { return &s }

func newHarness() *harness {
	h := &harness{
		catalog: &memCatalog{
			experiences: map[string]model.Experience{
				"exp-1": {ID: "exp-1", PartnerID: "sup-1", Title: "Boat tour", PriceCents: 6800, Currency: "eur", MaxParticipants: 6},
				"exp-2": {ID: "exp-2", PartnerID: "sup-2", Title: "Cooking class", PriceCents: 5000, Currency: "eur"},
			},
			partners: map[string]model.Partner{
				"sup-1":   {ID: "sup-1", DisplayName: "Lake Boats", StripeAccountID: strp("acct_sup1")},
				"sup-2":   {ID: "sup-2", DisplayName: "Nonna's Kitchen"},
				"hotel-1": {ID: "hotel-1", DisplayName: "Hotel Bellavista", HotelSlug: strp("bellavista")},
			},
		},
		settlements: &memSettlements{rows: map[string]model.Settlement{}},
		payouts:     &memPayouts{},
		stripe:      &fakeStripe{},
		events:      &recordingPublisher{},
		clock:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	h.reservations = &memReservations{rows: map[string]model.Reservation{}, catalog: h.catalog}
	h.tokens = token.New("test-secret").WithClock(func() time.Time { return h.clock })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	settler := settlement.New(log, h.settlements, h.payouts, h.stripe, m)
	h.svc = NewService(log, h.reservations, h.catalog, settler, h.stripe, h.events, h.tokens, m, Options{
		ResponseWindow: 48 * time.Hour,
		ActionTokenTTL: 24 * time.Hour,
		PublicBaseURL:  "https://book.example.com/",
	})
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) seed(id, experienceID string, status model.Status) {
	h.reservations.rows[id] = model.Reservation{
		ID:               id,
		ExperienceID:     experienceID,
		HotelID:          "hotel-1",
		GuestName:        "Ada",
		GuestEmail:       "ada@example.com",
		Participants:     2,
		TotalCents:       13600,
		Currency:         "eur",
		ResponseDeadline: h.clock.Add(48 * time.Hour),
		Status:           status,
	}
}

package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
	"github.com/Dosada05/tournify/storage"
)

// memStore is an in-memory database shared by the fake repositories. Rows are
// stored by value so callers never alias stored state.
type memStore struct {
	txMu sync.Mutex // serializes transactions like a row lock would
	mu   sync.Mutex

	seq          int
	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	memberships  map[int]models.Membership
	matches      map[int]models.Match
	standings    map[int]models.StandingsRow
	payments     map[int]models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:  map[int]models.Tournament{},
		participants: map[int]models.Participant{},
		memberships:  map[int]models.Membership{},
		matches:      map[int]models.Match{},
		standings:    map[int]models.StandingsRow{},
		payments:     map[int]models.Payment{},
	}
}

func (s *memStore) nextID() int {
	s.seq++
	return s.seq
}

type memSnapshot struct {
	seq          int
	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	memberships  map[int]models.Membership
	matches      map[int]models.Match
	standings    map[int]models.StandingsRow
	payments     map[int]models.Payment
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		seq:          s.seq,
		tournaments:  cloneMap(s.tournaments),
		participants: cloneMap(s.participants),
		memberships:  cloneMap(s.memberships),
		matches:      cloneMap(s.matches),
		standings:    cloneMap(s.standings),
		payments:     cloneMap(s.payments),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.tournaments = snap.tournaments
	s.participants = snap.participants
	s.memberships = snap.memberships
	s.matches = snap.matches
	s.standings = snap.standings
	s.payments = snap.payments
}

// WithinTx runs fn under the store-wide transaction lock and rolls back to a
// snapshot when fn fails.
func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func intPtr(v int) *int { return &v }

func copyPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyMatch(m models.Match) *models.Match {
	m.Participant1ID = copyPtr(m.Participant1ID)
	m.Participant2ID = copyPtr(m.Participant2ID)
	m.WinnerID = copyPtr(m.WinnerID)
	m.ParentMatch1ID = copyPtr(m.ParentMatch1ID)
	m.ParentMatch2ID = copyPtr(m.ParentMatch2ID)
	return &m
}

func copyTournament(t models.Tournament) *models.Tournament {
	t.ChampionParticipantID = copyPtr(t.ChampionParticipantID)
	return &t
}

// --- tournaments ---

type memTournamentRepo struct{ s *memStore }

func (r memTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tournaments {
		if existing.Code == t.Code {
			return repositories.ErrTournamentCodeConflict
		}
	}
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	r.s.tournaments[t.ID] = *t
	return nil
}

func (r memTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(t), nil
}

func (r memTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memTournamentRepo) GetByCode(ctx context.Context, exec repositories.SQLExecutor, code string) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tournaments {
		if t.Code == code {
			return copyTournament(t), nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r memTournamentRepo) CodeExists(ctx context.Context, exec repositories.SQLExecutor, code string) (bool, error) {
	_, err := r.GetByCode(ctx, exec, code)
	return err == nil, nil
}

func (r memTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.s.tournaments {
		if filter.PublicOnly && !t.IsPublic {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		out = append(out, copyTournament(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memTournamentRepo) Update(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.s.tournaments[t.ID] = *copyTournament(*t)
	return nil
}

func (r memTournamentRepo) UpdateChampion(ctx context.Context, exec repositories.SQLExecutor, id int, championID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ChampionParticipantID = copyPtr(championID)
	r.s.tournaments[id] = t
	return nil
}

func (r memTournamentRepo) Finish(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.IsFinished = true
	t.IsActive = false
	r.s.tournaments[id] = t
	return nil
}

func (r memTournamentRepo) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.s.tournaments, id)
	// ON DELETE CASCADE
	for k, v := range r.s.participants {
		if v.TournamentID == id {
			delete(r.s.participants, k)
		}
	}
	for k, v := range r.s.memberships {
		if v.TournamentID == id {
			delete(r.s.memberships, k)
		}
	}
	for k, v := range r.s.matches {
		if v.TournamentID == id {
			delete(r.s.matches, k)
		}
	}
	for k, v := range r.s.standings {
		if v.TournamentID == id {
			delete(r.s.standings, k)
		}
	}
	for k, v := range r.s.payments {
		if v.TournamentID == id {
			delete(r.s.payments, k)
		}
	}
	return nil
}

func (r memTournamentRepo) DeactivateExpired(ctx context.Context, now time.Time) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	hasMatches := map[int]bool{}
	for _, m := range r.s.matches {
		hasMatches[m.TournamentID] = true
	}
	var ids []int
	for id, t := range r.s.tournaments {
		if t.IsActive && !t.IsFinished && t.RegistrationClosed(now) && !hasMatches[id] {
			t.IsActive = false
			r.s.tournaments[id] = t
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// --- participants and memberships ---

type memParticipantRepo struct{ s *memStore }

func (r memParticipantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[p.TournamentID]; !ok {
		return repositories.ErrParticipantTournamentInvalid
	}
	p.ID = r.s.nextID()
	p.CreatedAt = time.Now()
	r.s.participants[p.ID] = *p
	return nil
}

func (r memParticipantRepo) FindByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return &p, nil
}

func (r memParticipantRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Participant{}
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memParticipantRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	list, err := r.ListByTournament(ctx, exec, tournamentID)
	return len(list), err
}

func (r memParticipantRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.s.participants, id)
	for mid, m := range r.s.memberships {
		if m.ParticipantID == id {
			delete(r.s.memberships, mid)
		}
	}
	return nil
}

type memMembershipRepo struct{ s *memStore }

func (r memMembershipRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.memberships {
		if existing.TournamentID == m.TournamentID && existing.UserID == m.UserID {
			return repositories.ErrMembershipConflict
		}
	}
	m.ID = r.s.nextID()
	m.JoinedAt = time.Now()
	r.s.memberships[m.ID] = *m
	return nil
}

func (r memMembershipRepo) Exists(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (bool, error) {
	_, err := r.GetByTournamentAndUser(ctx, exec, tournamentID, userID)
	return err == nil, nil
}

func (r memMembershipRepo) GetByTournamentAndUser(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.TournamentID == tournamentID && m.UserID == userID {
			m := m
			return &m, nil
		}
	}
	return nil, repositories.ErrMembershipNotFound
}

func (r memMembershipRepo) ListByUser(ctx context.Context, userID int) ([]*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Membership
	for _, m := range r.s.memberships {
		if m.UserID == userID {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

// --- matches ---

type memMatchRepo struct{ s *memStore }

func (r memMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[m.TournamentID]; !ok {
		return repositories.ErrMatchTournamentInvalid
	}
	m.ID = r.s.nextID()
	m.CreatedAt = time.Now()
	r.s.matches[m.ID] = *copyMatch(*m)
	return nil
}

func (r memMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r memMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Match{}
	for _, m := range r.s.matches {
		if m.TournamentID == tournamentID {
			out = append(out, copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memMatchRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	list, err := r.ListByTournament(ctx, exec, tournamentID)
	return len(list), err
}

func (r memMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, id int, winnerID *int, isDraw bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.WinnerID = copyPtr(winnerID)
	m.IsDraw = isDraw
	r.s.matches[id] = m
	return nil
}

func (r memMatchRepo) UpdateSlotsAndResult(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Participant1ID = copyPtr(match.Participant1ID)
	m.Participant2ID = copyPtr(match.Participant2ID)
	m.WinnerID = copyPtr(match.WinnerID)
	m.IsDraw = match.IsDraw
	r.s.matches[match.ID] = m
	return nil
}

// --- standings ---

type memStandingRepo struct{ s *memStore }

func (r memStandingRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.StandingsRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.StandingsRow{}
	for _, row := range r.s.standings {
		if row.TournamentID == tournamentID {
			row := row
			out = append(out, &row)
		}
	}
	brackets.SortStandings(out)
	return out, nil
}

func (r memStandingRepo) ResetByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, row := range r.s.standings {
		if row.TournamentID == tournamentID {
			row.Reset()
			r.s.standings[id] = row
		}
	}
	return nil
}

func (r memStandingRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, row *models.StandingsRow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[row.ParticipantID]; !ok {
		return repositories.ErrStandingParticipantInvalid
	}
	for id, existing := range r.s.standings {
		if existing.TournamentID == row.TournamentID && existing.ParticipantID == row.ParticipantID {
			row.ID = id
			r.s.standings[id] = *row
			return nil
		}
	}
	row.ID = r.s.nextID()
	r.s.standings[row.ID] = *row
	return nil
}

// --- payments ---

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.Reference == p.Reference {
			return repositories.ErrPaymentReferenceConflict
		}
	}
	p.ID = r.s.nextID()
	p.CreatedAt = time.Now()
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPaymentRepo) GetByReference(ctx context.Context, exec repositories.SQLExecutor, reference string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.Reference == reference {
			p := p
			return &p, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (r memPaymentRepo) HasCompleted(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.TournamentID == tournamentID && p.UserID == userID && p.Status == models.PaymentCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r memPaymentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.PaymentStatus, completedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.Status = status
	p.CompletedAt = completedAt
	r.s.payments[id] = p
	return nil
}

// --- broadcaster and archiver ---

type recordingHub struct {
	mu       sync.Mutex
	messages []brackets.WebSocketMessage
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg, ok := message.(brackets.WebSocketMessage); ok {
		h.messages = append(h.messages, msg)
	}
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, m.Type)
	}
	return out
}

func (h *recordingHub) count(msgType string) int {
	n := 0
	for _, t := range h.types() {
		if t == msgType {
			n++
		}
	}
	return n
}

type recordingArchiver struct {
	mu        sync.Mutex
	calls     []int
	discarded []int
}

func (a *recordingArchiver) ArchiveBracket(ctx context.Context, tournamentID int, snapshot interface{}) (*storage.UploadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, tournamentID)
	return &storage.UploadResult{Key: storage.ArchiveKey(tournamentID), Location: "memory"}, nil
}

func (a *recordingArchiver) DiscardBracket(ctx context.Context, tournamentID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = append(a.discarded, tournamentID)
	return nil
}

// testEnv wires every service against one memStore.
type testEnv struct {
	store        *memStore
	hub          *recordingHub
	archiver     *recordingArchiver
	tournaments  TournamentService
	participants ParticipantService
	results      BracketService
	payments     PaymentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(seed int64) *testEnv {
	store := newMemStore()
	hub := &recordingHub{}
	archiver := &recordingArchiver{}
	logger := discardLogger()
	rng := brackets.NewLockedSource(brackets.NewRandomSource(seed))

	tournamentRepo := memTournamentRepo{store}
	participantRepo := memParticipantRepo{store}
	membershipRepo := memMembershipRepo{store}
	matchRepo := memMatchRepo{store}
	standingRepo := memStandingRepo{store}
	paymentRepo := memPaymentRepo{store}

	participants := NewParticipantService(store, tournamentRepo, participantRepo, membershipRepo, matchRepo, paymentRepo, rng, hub, logger)
	return &testEnv{
		store:        store,
		hub:          hub,
		archiver:     archiver,
		tournaments:  NewTournamentService(store, tournamentRepo, participantRepo, matchRepo, rng, hub, logger),
		participants: participants,
		results:      NewBracketService(store, tournamentRepo, participantRepo, matchRepo, standingRepo, rng, hub, archiver, logger),
		payments:     NewPaymentService(store, tournamentRepo, membershipRepo, paymentRepo, participants, logger),
	}
}

func (e *testEnv) matches(tournamentID int) []*models.Match {
	list, _ := memMatchRepo{e.store}.ListByTournament(context.Background(), nil, tournamentID)
	return list
}

func (e *testEnv) match(id int) *models.Match {
	m, _ := memMatchRepo{e.store}.GetByID(context.Background(), nil, id)
	return m
}

func (e *testEnv) tournament(id int) *models.Tournament {
	t, _ := memTournamentRepo{e.store}.GetByID(context.Background(), nil, id)
	return t
}

func (e *testEnv) participantCount(tournamentID int) int {
	n, _ := memParticipantRepo{e.store}.CountByTournament(context.Background(), nil, tournamentID)
	return n
}

func latestRound(matches []*models.Match) []*models.Match {
	maxRound := 0
	for _, m := range matches {
		if m.RoundNumber > maxRound {
			maxRound = m.RoundNumber
		}
	}
	var out []*models.Match
	for _, m := range matches {
		if m.RoundNumber == maxRound {
			out = append(out, m)
		}
	}
	return out
}

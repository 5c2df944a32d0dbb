package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
)

type RosterEntry struct {
	Name     string  `json:"name"`
	TeamName *string `json:"team_name,omitempty"`
}

type CreateTournamentInput struct {
	Name                 string             `json:"name"`
	Description          *string            `json:"description,omitempty"`
	Category             models.Category    `json:"category"`
	Capacity             int                `json:"capacity"`
	Format               models.MatchFormat `json:"format"`
	IsPublic             bool               `json:"is_public"`
	IsPaid               bool               `json:"is_paid"`
	PriceCents           int64              `json:"price_cents"`
	RegistrationDeadline *time.Time         `json:"registration_deadline,omitempty"`
	Roster               []RosterEntry      `json:"roster,omitempty"`
}

// UpdateTournamentInput: nil поля не изменяются.
type UpdateTournamentInput struct {
	Name                 *string             `json:"name,omitempty"`
	Description          *string             `json:"description,omitempty"`
	Category             *models.Category    `json:"category,omitempty"`
	Capacity             *int                `json:"capacity,omitempty"`
	Format               *models.MatchFormat `json:"format,omitempty"`
	IsPublic             *bool               `json:"is_public,omitempty"`
	IsPaid               *bool               `json:"is_paid,omitempty"`
	PriceCents           *int64              `json:"price_cents,omitempty"`
	IsActive             *bool               `json:"is_active,omitempty"`
	RegistrationDeadline *time.Time          `json:"registration_deadline,omitempty"`
	// Roster заменяет список, внесенный хостом; вступившие пользователи не затрагиваются.
	Roster []RosterEntry `json:"roster,omitempty"`
}

type ListTournamentsInput struct {
	Format   *models.MatchFormat
	Category *models.Category
	// HostID restricts the list to one host; the host also sees private tournaments.
	HostID *int
	Limit  int
	Offset int
}

type TournamentService interface {
	CreateTournament(ctx context.Context, hostID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	GetTournamentByCode(ctx context.Context, code string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, viewerID *int, input ListTournamentsInput) ([]*models.Tournament, error)
	UpdateTournament(ctx context.Context, actorID, id int, input UpdateTournamentInput) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, actorID, id int) error
	EndTournament(ctx context.Context, actorID, id int) (*models.Tournament, error)
	CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error)
}

type tournamentService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	fixtures        *fixtureBuilder
	hub             Broadcaster
	logger          *slog.Logger
	now             func() time.Time
}

func NewTournamentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	rng brackets.RandomSource,
	hub Broadcaster,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		fixtures: &fixtureBuilder{
			participantRepo: participantRepo,
			matchRepo:       matchRepo,
			rng:             rng,
			logger:          logger,
		},
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, hostID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.Capacity < 2 {
		return nil, ErrInvalidCapacity
	}
	if !input.Format.IsValid() {
		return nil, ErrInvalidFormat
	}
	category := input.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	price, err := validatePrice(input.IsPaid, input.PriceCents)
	if err != nil {
		return nil, err
	}
	if input.RegistrationDeadline != nil && !input.RegistrationDeadline.After(s.now()) {
		return nil, ErrInvalidDeadline
	}
	if len(input.Roster) > input.Capacity {
		return nil, fmt.Errorf("%w: %d entries for capacity %d", ErrRosterExceedsCapacity, len(input.Roster), input.Capacity)
	}
	// Приватный knockout проверяется сразу, публичный - при заполнении.
	if input.Format == models.FormatKnockout && !input.IsPublic && !brackets.IsPowerOfTwo(input.Capacity) {
		return nil, ErrInvalidKnockoutCapacity
	}
	roster := make([]RosterEntry, 0, len(input.Roster))
	for _, entry := range input.Roster {
		entryName := strings.TrimSpace(entry.Name)
		if entryName == "" {
			return nil, ErrParticipantNameRequired
		}
		roster = append(roster, RosterEntry{Name: entryName, TeamName: trimmedOrNil(entry.TeamName)})
	}

	tournament := &models.Tournament{
		Name:                 name,
		Slug:                 slug.Make(name),
		Description:          trimmedOrNil(input.Description),
		Category:             category,
		Capacity:             input.Capacity,
		Format:               input.Format,
		IsPublic:             input.IsPublic,
		IsPaid:               input.IsPaid,
		PriceCents:           price,
		IsActive:             true,
		RegistrationDeadline: input.RegistrationDeadline,
		CreatedBy:            hostID,
	}

	var generated []*models.Match
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		code, err := s.uniqueCode(ctx, exec)
		if err != nil {
			return err
		}
		tournament.Code = code
		if err := s.tournamentRepo.Create(ctx, exec, tournament); err != nil {
			return handleRepositoryError(err)
		}

		host := hostID
		for _, entry := range roster {
			p := &models.Participant{
				TournamentID: tournament.ID,
				Name:         entry.Name,
				TeamName:     entry.TeamName,
				AddedBy:      &host,
			}
			if err := s.participantRepo.Create(ctx, exec, p); err != nil {
				return handleRepositoryError(err)
			}
		}

		generated, err = s.fixtures.generateIfFull(ctx, exec, tournament)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("host_id", hostID),
		slog.String("format", string(tournament.Format)),
		slog.Int("capacity", tournament.Capacity),
		slog.Int("roster", len(roster)),
		slog.Bool("fixtures_generated", len(generated) > 0))
	return tournament, nil
}

func (s *tournamentService) uniqueCode(ctx context.Context, exec repositories.SQLExecutor) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := generateTournamentCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate tournament code: %w", err)
		}
		exists, err := s.tournamentRepo.CodeExists(ctx, exec, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeGenerationFailed
}

func validatePrice(isPaid bool, price int64) (int64, error) {
	if !isPaid {
		return 0, nil
	}
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	return price, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) GetTournamentByCode(ctx context.Context, code string) (*models.Tournament, error) {
	normalized, err := NormalizeTournamentCode(code)
	if err != nil {
		return nil, err
	}
	t, err := s.tournamentRepo.GetByCode(ctx, nil, normalized)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, viewerID *int, input ListTournamentsInput) ([]*models.Tournament, error) {
	filter := repositories.ListTournamentsFilter{
		Format:     input.Format,
		Category:   input.Category,
		CreatedBy:  input.HostID,
		PublicOnly: true,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	// Хост видит и свои приватные турниры.
	if input.HostID != nil && viewerID != nil && *input.HostID == *viewerID {
		filter.PublicOnly = false
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.tournamentRepo.List(ctx, filter)
}

func (s *tournamentService) UpdateTournament(ctx context.Context, actorID, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	var (
		updated   *models.Tournament
		generated []*models.Match
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return ErrTournamentNameRequired
			}
			t.Name = name
			t.Slug = slug.Make(name)
		}
		if input.Description != nil {
			t.Description = trimmedOrNil(input.Description)
		}
		if input.Category != nil {
			if !input.Category.IsValid() {
				return fmt.Errorf("%w: %q", ErrInvalidCategory, *input.Category)
			}
			t.Category = *input.Category
		}
		if input.IsPublic != nil {
			t.IsPublic = *input.IsPublic
		}
		if input.IsPaid != nil {
			t.IsPaid = *input.IsPaid
		}
		if input.PriceCents != nil {
			t.PriceCents = *input.PriceCents
		}
		if t.PriceCents, err = validatePrice(t.IsPaid, t.PriceCents); err != nil {
			return err
		}
		if input.IsActive != nil {
			if *input.IsActive && t.IsFinished {
				return ErrTournamentFinished
			}
			t.IsActive = *input.IsActive
		}
		if input.RegistrationDeadline != nil {
			if !input.RegistrationDeadline.After(s.now()) {
				return ErrInvalidDeadline
			}
			t.RegistrationDeadline = input.RegistrationDeadline
		}

		if input.Capacity != nil || input.Format != nil || input.Roster != nil {
			matchCount, err := s.matchRepo.CountByTournament(ctx, exec, t.ID)
			if err != nil {
				return err
			}
			if matchCount > 0 {
				return ErrFixturesLocked
			}
			if input.Format != nil {
				if !input.Format.IsValid() {
					return ErrInvalidFormat
				}
				t.Format = *input.Format
			}
			if input.Capacity != nil {
				if *input.Capacity < 2 {
					return ErrInvalidCapacity
				}
				count, err := s.participantRepo.CountByTournament(ctx, exec, t.ID)
				if err != nil {
					return err
				}
				// Новый ростер проверяется в syncRoster.
				if input.Roster == nil && count > *input.Capacity {
					return fmt.Errorf("%w: %d participants for capacity %d", ErrRosterExceedsCapacity, count, *input.Capacity)
				}
				t.Capacity = *input.Capacity
			}
			if input.Roster != nil {
				if err := s.syncRoster(ctx, exec, t, input.Roster); err != nil {
					return err
				}
			}
		}
		if t.Format == models.FormatKnockout && !t.IsPublic && !brackets.IsPowerOfTwo(t.Capacity) {
			return ErrInvalidKnockoutCapacity
		}

		if err := s.tournamentRepo.Update(ctx, exec, t); err != nil {
			return handleRepositoryError(err)
		}
		// Ростер, заполнивший capacity, запускает генерацию.
		generated, err = s.fixtures.generateIfFull(ctx, exec, t)
		if err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(generated) > 0 {
		notify(s.hub, updated.ID, brackets.MessageFixturesGenerated, generated)
	}
	return updated, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, actorID, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return handleRepositoryError(err)
	}
	if t.CreatedBy != actorID {
		return ErrForbiddenOperation
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.Info("tournament deleted", slog.Int("tournament_id", id), slog.Int("host_id", actorID))
	return nil
}

func (s *tournamentService) EndTournament(ctx context.Context, actorID, id int) (*models.Tournament, error) {
	var ended *models.Tournament
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}
		if t.IsFinished {
			ended = t
			return nil
		}
		if err := s.tournamentRepo.Finish(ctx, exec, id); err != nil {
			return handleRepositoryError(err)
		}
		t.IsFinished = true
		t.IsActive = false
		ended = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	notify(s.hub, id, brackets.MessageTournamentFinished, map[string]interface{}{
		"tournament_id": id,
		"champion_id":   ended.ChampionParticipantID,
	})
	return ended, nil
}

func (s *tournamentService) CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.tournamentRepo.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.logger.Info("registration closed by deadline", slog.Int("tournament_id", id))
	}
	return len(ids), nil
}

// syncRoster приводит список участников, внесенных хостом, к entries:
// совпадающие записи остаются, недостающие создаются, лишние удаляются.
func (s *tournamentService) syncRoster(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, entries []RosterEntry) error {
	wanted := make([]RosterEntry, 0, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return ErrParticipantNameRequired
		}
		wanted = append(wanted, RosterEntry{Name: name, TeamName: trimmedOrNil(entry.TeamName)})
	}

	current, err := s.participantRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}

	joined := 0
	var removed []*models.Participant
	for _, p := range current {
		if p.UserID != nil {
			joined++
			continue
		}
		idx := -1
		for i, entry := range wanted {
			if entry.Name == p.Name && derefTeam(entry.TeamName) == derefTeam(p.TeamName) {
				idx = i
				break
			}
		}
		if idx < 0 {
			removed = append(removed, p)
			continue
		}
		wanted = append(wanted[:idx], wanted[idx+1:]...)
	}

	if total := len(current) - len(removed) + len(wanted); total > t.Capacity {
		return fmt.Errorf("%w: %d participants for capacity %d", ErrRosterExceedsCapacity, total, t.Capacity)
	}

	for _, p := range removed {
		if err := s.participantRepo.Delete(ctx, exec, p.ID); err != nil {
			return handleRepositoryError(err)
		}
	}
	host := t.CreatedBy
	for _, entry := range wanted {
		p := &models.Participant{
			TournamentID: t.ID,
			Name:         entry.Name,
			TeamName:     entry.TeamName,
			AddedBy:      &host,
		}
		if err := s.participantRepo.Create(ctx, exec, p); err != nil {
			return handleRepositoryError(err)
		}
	}

	s.logger.Info("roster updated",
		slog.Int("tournament_id", t.ID),
		slog.Int("added", len(wanted)),
		slog.Int("removed", len(removed)),
		slog.Int("joined_users", joined))
	return nil
}

func derefTeam(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

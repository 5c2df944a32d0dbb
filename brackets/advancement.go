package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/tournify/models"
)

var ErrKnockoutDraw = errors.New("knockout match is marked as a draw")

type AdvancementState int

const (
	AwaitingRound AdvancementState = iota
	RoundComplete
	ChampionDetermined
)

func (s AdvancementState) String() string {
	switch s {
	case AwaitingRound:
		return "awaiting_round"
	case RoundComplete:
		return "round_complete"
	case ChampionDetermined:
		return "champion_determined"
	default:
		return fmt.Sprintf("AdvancementState(%d)", int(s))
	}
}

// PlannedMatch is a next-round match that has not been persisted yet.
type PlannedMatch struct {
	Round          int
	Stage          models.MatchStage
	Participant1ID int
	Participant2ID *int
	WinnerID       *int
	ParentMatch1ID *int
	ParentMatch2ID *int
}

// Advancement describes what the latest round of a knockout bracket allows.
//
//   - AwaitingRound: Round still has undecided matches, nothing to do.
//   - RoundComplete: Round is decided and NewMatches form round Round+1.
//   - ChampionDetermined: Round produced a single winner, ChampionID.
//
// ByeParticipants lists winners that were advanced without an opponent.
// That only happens for rosters that bypassed the power-of-two check.
type Advancement struct {
	State           AdvancementState
	Round           int
	NewMatches      []*PlannedMatch
	ChampionID      *int
	ByeParticipants []int
}

type roundWinner struct {
	matchID  int
	winnerID int
}

// PlanAdvancement inspects the latest round of a knockout tournament.
// Matches of the round are read in creation order (id ascending); winners
// are then shuffled with rng before adjacent pairing, so every round is
// re-seeded. Calling it again while the planned round is still open yields
// AwaitingRound, which makes repeated calls harmless.
func PlanAdvancement(matches []*models.Match, rng RandomSource) (*Advancement, error) {
	if len(matches) == 0 {
		return &Advancement{State: AwaitingRound, Round: 0}, nil
	}

	latest := 0
	for _, m := range matches {
		if m.RoundNumber > latest {
			latest = m.RoundNumber
		}
	}

	round := make([]*models.Match, 0)
	for _, m := range matches {
		if m.RoundNumber == latest {
			round = append(round, m)
		}
	}
	sort.SliceStable(round, func(i, j int) bool { return round[i].ID < round[j].ID })

	winners := make([]roundWinner, 0, len(round))
	for _, m := range round {
		if !m.IsDecided() {
			return &Advancement{State: AwaitingRound, Round: latest}, nil
		}
		if m.WinnerID == nil {
			return nil, fmt.Errorf("match %d in round %d: %w", m.ID, latest, ErrKnockoutDraw)
		}
		winners = append(winners, roundWinner{matchID: m.ID, winnerID: *m.WinnerID})
	}

	if len(winners) == 1 {
		champion := winners[0].winnerID
		return &Advancement{State: ChampionDetermined, Round: latest, ChampionID: &champion}, nil
	}

	if rng == nil {
		return nil, fmt.Errorf("plan advancement: random source is not configured")
	}
	rng.Shuffle(len(winners), func(i, j int) {
		winners[i], winners[j] = winners[j], winners[i]
	})

	next := latest + 1
	planned := make([]*PlannedMatch, 0, (len(winners)+1)/2)
	var byes []int
	for i := 0; i < len(winners); i += 2 {
		w1 := winners[i]
		parent1 := w1.matchID
		pm := &PlannedMatch{
			Round:          next,
			Participant1ID: w1.winnerID,
			ParentMatch1ID: &parent1,
		}
		if i+1 < len(winners) {
			w2 := winners[i+1]
			p2, parent2 := w2.winnerID, w2.matchID
			pm.Participant2ID = &p2
			pm.ParentMatch2ID = &parent2
		} else {
			// Bye: the trailing winner advances on its own.
			winner := w1.winnerID
			pm.WinnerID = &winner
			byes = append(byes, winner)
		}
		planned = append(planned, pm)
	}

	stage := StageForMatchCount(len(planned))
	for _, pm := range planned {
		pm.Stage = stage
	}

	return &Advancement{
		State:           RoundComplete,
		Round:           latest,
		NewMatches:      planned,
		ByeParticipants: byes,
	}, nil
}

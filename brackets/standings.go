package brackets

import (
	"sort"

	"github.com/Dosada05/tournify/models"
)

const (
	PointsForWin  = 3
	PointsForDraw = 1
	PointsForLoss = 0
)

// ComputeStandings rebuilds the league table from the whole match history.
// Existing rows are copied and zeroed first, rows for participants seen only
// in matches are created on demand. Knockout tournaments have no table and
// get nil. The input slices are not modified.
func ComputeStandings(tournament *models.Tournament, existing []*models.StandingsRow, matches []*models.Match) []*models.StandingsRow {
	if tournament == nil || tournament.Format != models.FormatLeague {
		return nil
	}

	rows := make([]*models.StandingsRow, 0, len(existing))
	byParticipant := make(map[int]*models.StandingsRow, len(existing))
	for _, r := range existing {
		row := *r
		row.Reset()
		rows = append(rows, &row)
		byParticipant[row.ParticipantID] = &row
	}

	getOrCreate := func(participantID int) *models.StandingsRow {
		if row, ok := byParticipant[participantID]; ok {
			return row
		}
		row := &models.StandingsRow{TournamentID: tournament.ID, ParticipantID: participantID}
		rows = append(rows, row)
		byParticipant[participantID] = row
		return row
	}

	for _, m := range matches {
		if !m.IsDecided() || m.Participant1ID == nil || m.Participant2ID == nil {
			continue
		}
		p1 := getOrCreate(*m.Participant1ID)
		p2 := getOrCreate(*m.Participant2ID)
		p1.MatchesPlayed++
		p2.MatchesPlayed++

		if m.IsDraw {
			p1.Draws++
			p2.Draws++
			p1.Points += PointsForDraw
			p2.Points += PointsForDraw
			continue
		}

		winner, loser := p1, p2
		if *m.WinnerID == *m.Participant2ID {
			winner, loser = p2, p1
		}
		winner.Wins++
		winner.Points += PointsForWin
		loser.Losses++
		loser.Points += PointsForLoss
	}

	SortStandings(rows)
	return rows
}

// SortStandings orders by points desc, wins desc, then participant id.
func SortStandings(rows []*models.StandingsRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].ParticipantID < rows[j].ParticipantID
	})
}

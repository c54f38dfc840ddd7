package game

import "time"

type Role string

const (
	RoleNone   Role = ""
	RoleHuman  Role = "human"
	RoleAIUser Role = "ai_user"
	RoleTroll  Role = "troll"
)

// roleOrder is the enumeration order used for deterministic tie-breaking.
var roleOrder = []Role{RoleHuman, RoleAIUser, RoleTroll}

func ValidRole(r Role) bool {
	for _, known := range roleOrder {
		if r == known {
			return true
		}
	}
	return false
}

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
	Connected bool      `json:"connected"`
	IsAdmin   bool      `json:"is_admin"`
}

type Submission struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"player_id"`
	Round       int       `json:"round"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Vote struct {
	ID            string    `json:"id"`
	VoterID       string    `json:"voter_id"`
	TargetID      string    `json:"target_id"`
	PredictedRole Role      `json:"predicted_role"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Settings are fixed at room construction.
type Settings struct {
	MinPlayers int
	MaxPlayers int
	Rounds     int

	RoundDuration      time.Duration
	VotingDuration     time.Duration
	RoleRevealDuration time.Duration
	ResultsDuration    time.Duration

	MaxContentLen      int
	AutoStartThreshold int
	AutoStartGrace     time.Duration
}

// PlayerView is the roster entry exposed to clients. Role is populated only
// for the viewer's own entry, or for everyone once results are in.
type PlayerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
	Connected bool      `json:"connected"`
	IsAdmin   bool      `json:"is_admin"`
}

// StateView is a caller-scoped, copy-on-read snapshot of the room.
type StateView struct {
	RoomID       string       `json:"room_id"`
	Phase        Phase        `json:"phase"`
	PhaseEndsAt  *time.Time   `json:"phase_ends_at,omitempty"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	Players      []PlayerView `json:"players"`
	Admin        *PlayerView  `json:"admin,omitempty"`
	Rounds       int          `json:"rounds"`
	MinPlayers   int          `json:"min_players"`
	MaxPlayers   int          `json:"max_players"`
	Submissions  []Submission `json:"submissions,omitempty"`
	Results      *GameResults `json:"results,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

type PlayerScore struct {
	PlayerID       string  `json:"player_id"`
	Name           string  `json:"name"`
	Role           Role    `json:"role"`
	MostVotedRole  Role    `json:"most_voted_role,omitempty"`
	CorrectGuesses int     `json:"correct_guesses"`
	VotesCast      int     `json:"votes_cast"`
	Accuracy       float64 `json:"accuracy"`
	RoleHidden     bool    `json:"role_hidden"`
	Points         int     `json:"points"`
}

type GameStats struct {
	DurationSeconds    int64   `json:"duration_seconds"`
	AverageAccuracy    float64 `json:"average_accuracy"`
	MostAccurateID     string  `json:"most_accurate_id,omitempty"`
	BestHiddenRoleID   string  `json:"best_hidden_role_id,omitempty"`
	TotalSubmissions   int     `json:"total_submissions"`
	TotalVotes         int     `json:"total_votes"`
	ParticipantCount   int     `json:"participant_count"`
	CorrectGuessTotal  int     `json:"correct_guess_total"`
	HiddenRoleCount    int     `json:"hidden_role_count"`
	AccuracySampleSize int     `json:"accuracy_sample_size"`
}

type GameResults struct {
	Scores []PlayerScore `json:"scores"`
	Stats  GameStats     `json:"stats"`
}

func (p *Player) view(includeRole bool) PlayerView {
	v := PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		JoinedAt:  p.JoinedAt,
		Connected: p.Connected,
		IsAdmin:   p.IsAdmin,
	}
	if includeRole {
		v.Role = p.Role
	}
	return v
}

package models

import (
	"fmt"
	"time"
)

const (
	ProtocolName  = "league.v2"
	ManagerSender = "league_manager"
)

// Tool names exposed by the three agent roles.
const (
	ToolRegisterReferee      = "register_referee"
	ToolRegisterPlayer       = "register_player"
	ToolReportMatchResult    = "report_match_result"
	ToolGetStandings         = "get_standings"
	ToolHandleLeagueQuery    = "handle_league_query"
	ToolStartMatch           = "start_match"
	ToolReceiveInvitation    = "receive_game_invitation"
	ToolChooseParity         = "choose_parity"
	ToolReceiveGameOver      = "receive_game_over"
	ToolNotifyRound          = "notify_round"
	ToolNotifyStandings      = "notify_standings"
	ToolNotifyRoundCompleted = "notify_round_completed"
	ToolNotifyLeagueComplete = "notify_league_completed"
)

const (
	MsgRefereeRegisterRequest  = "REFEREE_REGISTER_REQUEST"
	MsgRefereeRegisterResponse = "REFEREE_REGISTER_RESPONSE"
	MsgLeagueRegisterRequest   = "LEAGUE_REGISTER_REQUEST"
	MsgLeagueRegisterResponse  = "LEAGUE_REGISTER_RESPONSE"
	MsgRoundAnnouncement       = "ROUND_ANNOUNCEMENT"
	MsgStandingsUpdate         = "LEAGUE_STANDINGS_UPDATE"
	MsgRoundCompleted          = "ROUND_COMPLETED"
	MsgLeagueCompleted         = "LEAGUE_COMPLETED"
	MsgStartMatch              = "START_MATCH"
	MsgGameInvitation          = "GAME_INVITATION"
	MsgChooseParityCall        = "CHOOSE_PARITY_CALL"
	MsgChooseParityResponse    = "CHOOSE_PARITY_RESPONSE"
	MsgGameOver                = "GAME_OVER"
	MsgMatchResultReport       = "MATCH_RESULT_REPORT"
	MsgLeagueQuery             = "LEAGUE_QUERY"
	MsgLeagueQueryResponse     = "LEAGUE_QUERY_RESPONSE"
	MsgLeagueError             = "LEAGUE_ERROR"
)

// Timestamp formats t the way every envelope carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "ACCEPTED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// Input structs keep every field optional on the wire; required fields are
// checked by the services so that a missing one maps to a protocol error code.

type RefereeMeta struct {
	DisplayName          string   `json:"display_name,omitempty"`
	Version              string   `json:"version,omitempty"`
	GameTypes            []string `json:"game_types,omitempty"`
	ContactEndpoint      string   `json:"contact_endpoint,omitempty"`
	MaxConcurrentMatches int      `json:"max_concurrent_matches,omitempty"`
}

type RefereeRegisterRequest struct {
	Protocol       string       `json:"protocol,omitempty"`
	MessageType    string       `json:"message_type,omitempty"`
	Sender         string       `json:"sender,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	RefereeMeta    *RefereeMeta `json:"referee_meta,omitempty"`
}

type PlayerMeta struct {
	DisplayName     string   `json:"display_name,omitempty"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	AgentVersion    string   `json:"agent_version,omitempty"`
	GameTypes       []string `json:"game_types,omitempty"`
	ContactEndpoint string   `json:"contact_endpoint,omitempty"`
}

type PlayerRegisterRequest struct {
	Protocol       string      `json:"protocol,omitempty"`
	MessageType    string      `json:"message_type,omitempty"`
	Sender         string      `json:"sender,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	PlayerMeta     *PlayerMeta `json:"player_meta,omitempty"`
}

type RegistrationResponse struct {
	MessageType string             `json:"message_type"`
	Status      RegistrationStatus `json:"status"`
	PlayerID    string             `json:"player_id,omitempty"`
	RefereeID   string             `json:"referee_id,omitempty"`
	AuthToken   string             `json:"auth_token,omitempty"`
	LeagueID    string             `json:"league_id,omitempty"`
	Reason      *string            `json:"reason"`
}

type MatchResultReport struct {
	Protocol       string       `json:"protocol,omitempty"`
	MessageType    string       `json:"message_type,omitempty"`
	Sender         string       `json:"sender,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
	ConversationID string       `json:"conversation_id,omitempty"`
	AuthToken      string       `json:"auth_token,omitempty"`
	LeagueID       string       `json:"league_id,omitempty"`
	RoundID        int          `json:"round_id,omitempty"`
	MatchID        string       `json:"match_id,omitempty"`
	GameType       string       `json:"game_type,omitempty"`
	Result         *MatchResult `json:"result,omitempty"`
}

type ReportAck struct {
	Status  string `json:"status"`
	MatchID string `json:"match_id"`
}

type StandingsRequest struct {
	LeagueID string `json:"league_id,omitempty"`
}

type StandingsResponse struct {
	Standings []Standing `json:"standings"`
}

const (
	QueryGetStandings   = "GET_STANDINGS"
	QueryGetSchedule    = "GET_SCHEDULE"
	QueryGetNextMatch   = "GET_NEXT_MATCH"
	QueryGetPlayerStats = "GET_PLAYER_STATS"
)

type LeagueQuery struct {
	Protocol       string         `json:"protocol,omitempty"`
	MessageType    string         `json:"message_type,omitempty"`
	Sender         string         `json:"sender,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	AuthToken      string         `json:"auth_token,omitempty"`
	LeagueID       string         `json:"league_id,omitempty"`
	QueryType      string         `json:"query_type,omitempty"`
	QueryParams    map[string]any `json:"query_params,omitempty"`
}

type QueryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LeagueQueryResponse struct {
	Protocol       string      `json:"protocol"`
	MessageType    string      `json:"message_type"`
	Sender         string      `json:"sender"`
	Timestamp      string      `json:"timestamp"`
	ConversationID string      `json:"conversation_id"`
	QueryType      string      `json:"query_type"`
	Success        bool        `json:"success"`
	Data           any         `json:"data,omitempty"`
	Error          *QueryError `json:"error,omitempty"`
}

type ScheduleItem struct {
	MatchID   string `json:"match_id"`
	RoundID   int    `json:"round_id"`
	PlayerA   string `json:"player_A_id"`
	PlayerB   string `json:"player_B_id"`
	Completed bool   `json:"completed"`
}

type NextMatch struct {
	MatchID         string `json:"match_id"`
	RoundID         int    `json:"round_id"`
	OpponentID      string `json:"opponent_id"`
	RefereeEndpoint string `json:"referee_endpoint,omitempty"`
}

type PlayerStats struct {
	PlayerID     string   `json:"player_id"`
	DisplayName  string   `json:"display_name"`
	Stats        Standing `json:"stats"`
	RegisteredAt string   `json:"registered_at,omitempty"`
}

// Manager -> players broadcasts.

type AnnouncedMatch struct {
	MatchID         string `json:"match_id"`
	GameType        string `json:"game_type"`
	PlayerA         string `json:"player_A_id"`
	PlayerB         string `json:"player_B_id"`
	RefereeEndpoint string `json:"referee_endpoint,omitempty"`
}

type RoundAnnouncement struct {
	Protocol       string           `json:"protocol,omitempty"`
	MessageType    string           `json:"message_type,omitempty"`
	Sender         string           `json:"sender,omitempty"`
	Timestamp      string           `json:"timestamp,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	LeagueID       string           `json:"league_id,omitempty"`
	RoundID        int              `json:"round_id,omitempty"`
	Matches        []AnnouncedMatch `json:"matches,omitempty"`
}

type StandingsUpdate struct {
	Protocol       string     `json:"protocol,omitempty"`
	MessageType    string     `json:"message_type,omitempty"`
	Sender         string     `json:"sender,omitempty"`
	Timestamp      string     `json:"timestamp,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	LeagueID       string     `json:"league_id,omitempty"`
	RoundID        int        `json:"round_id,omitempty"`
	Standings      []Standing `json:"standings,omitempty"`
}

type RoundSummary struct {
	TotalMatches    int `json:"total_matches"`
	Wins            int `json:"wins"`
	Draws           int `json:"draws"`
	TechnicalLosses int `json:"technical_losses"`
}

type RoundCompleted struct {
	Protocol         string        `json:"protocol,omitempty"`
	MessageType      string        `json:"message_type,omitempty"`
	Sender           string        `json:"sender,omitempty"`
	Timestamp        string        `json:"timestamp,omitempty"`
	ConversationID   string        `json:"conversation_id,omitempty"`
	LeagueID         string        `json:"league_id,omitempty"`
	RoundID          int           `json:"round_id,omitempty"`
	MatchesCompleted int           `json:"matches_completed,omitempty"`
	NextRoundID      *int          `json:"next_round_id"`
	Summary          *RoundSummary `json:"summary,omitempty"`
}

type Champion struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

type FinalStanding struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Points   int    `json:"points"`
}

type LeagueCompleted struct {
	Protocol       string          `json:"protocol,omitempty"`
	MessageType    string          `json:"message_type,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	LeagueID       string          `json:"league_id,omitempty"`
	TotalRounds    int             `json:"total_rounds,omitempty"`
	TotalMatches   int             `json:"total_matches,omitempty"`
	Champion       *Champion       `json:"champion,omitempty"`
	FinalStandings []FinalStanding `json:"final_standings,omitempty"`
}

// Manager -> referee.

type StartMatchRequest struct {
	Protocol        string `json:"protocol,omitempty"`
	MessageType     string `json:"message_type,omitempty"`
	Sender          string `json:"sender,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	LeagueID        string `json:"league_id,omitempty"`
	RoundID         int    `json:"round_id,omitempty"`
	MatchID         string `json:"match_id,omitempty"`
	GameType        string `json:"game_type,omitempty"`
	PlayerA         string `json:"player_A_id,omitempty"`
	PlayerB         string `json:"player_B_id,omitempty"`
	PlayerAEndpoint string `json:"player_A_endpoint,omitempty"`
	PlayerBEndpoint string `json:"player_B_endpoint,omitempty"`
}

type StartMatchResponse struct {
	Status  string `json:"status"`
	MatchID string `json:"match_id"`
}

// Referee -> players.

type GameInvitation struct {
	Protocol       string `json:"protocol,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	Sender         string `json:"sender,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	AuthToken      string `json:"auth_token,omitempty"`
	LeagueID       string `json:"league_id,omitempty"`
	RoundID        int    `json:"round_id,omitempty"`
	MatchID        string `json:"match_id,omitempty"`
	GameType       string `json:"game_type,omitempty"`
	RoleInMatch    string `json:"role_in_match,omitempty"`
	OpponentID     string `json:"opponent_id,omitempty"`
}

type ChoiceContext struct {
	OpponentID    string         `json:"opponent_id,omitempty"`
	RoundID       int            `json:"round_id,omitempty"`
	YourStandings map[string]int `json:"your_standings,omitempty"`
}

type ChooseParityCall struct {
	Protocol       string         `json:"protocol,omitempty"`
	MessageType    string         `json:"message_type,omitempty"`
	Sender         string         `json:"sender,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	AuthToken      string         `json:"auth_token,omitempty"`
	LeagueID       string         `json:"league_id,omitempty"`
	MatchID        string         `json:"match_id,omitempty"`
	PlayerID       string         `json:"player_id,omitempty"`
	GameType       string         `json:"game_type,omitempty"`
	Deadline       string         `json:"deadline,omitempty"`
	Context        *ChoiceContext `json:"context,omitempty"`
}

type ChooseParityResponse struct {
	Protocol     string `json:"protocol,omitempty"`
	MessageType  string `json:"message_type,omitempty"`
	Sender       string `json:"sender,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
	ParityChoice string `json:"parity_choice"`
}

type GameStatus string

const (
	GameStatusWin           GameStatus = "WIN"
	GameStatusDraw          GameStatus = "DRAW"
	GameStatusTechnicalLoss GameStatus = "TECHNICAL_LOSS"
)

type GameResult struct {
	Status         GameStatus        `json:"status,omitempty"`
	WinnerPlayerID *string           `json:"winner_player_id,omitempty"`
	DrawnNumber    int               `json:"drawn_number,omitempty"`
	NumberParity   string            `json:"number_parity,omitempty"`
	Choices        map[string]string `json:"choices,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

type GameOver struct {
	Protocol       string      `json:"protocol,omitempty"`
	MessageType    string      `json:"message_type,omitempty"`
	Sender         string      `json:"sender,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
	AuthToken      string      `json:"auth_token,omitempty"`
	MatchID        string      `json:"match_id,omitempty"`
	GameType       string      `json:"game_type,omitempty"`
	GameResult     *GameResult `json:"game_result,omitempty"`
}

// Ack is the generic acknowledgement returned by notification tools.
type Ack struct {
	Status string `json:"status"`
}

func NewAck() Ack { return Ack{Status: "ACK"} }

// LeagueError is the error envelope returned by manager tools.
type LeagueError struct {
	Protocol            string         `json:"protocol"`
	MessageType         string         `json:"message_type"`
	Sender              string         `json:"sender"`
	Timestamp           string         `json:"timestamp"`
	ConversationID      string         `json:"conversation_id,omitempty"`
	ErrorCode           string         `json:"error_code"`
	ErrorDescription    string         `json:"error_description"`
	OriginalMessageType string         `json:"original_message_type,omitempty"`
	Context             map[string]any `json:"context,omitempty"`
	Retryable           bool           `json:"retryable"`
}

func (e *LeagueError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorDescription)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samborkent/uuidv7"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/agent-league/brackets"
	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/repositories"
)

const reasonNoRefereeAccepted = "no referee accepted the match"

type LeagueConfig struct {
	LeagueID            string
	GameType            string
	RegistrationTimeout time.Duration
	MinPlayers          int
	Points              games.Points
}

// EventPublisher receives spectator events. brackets.Hub implements it.
type EventPublisher interface {
	Publish(roomID, eventType string, payload any)
}

// LeagueReporter is told about the final outcome once the league completes.
type LeagueReporter interface {
	PublishReport(ctx context.Context, report *LeagueReport) error
}

// LeagueReport is the archived summary of a finished league run.
type LeagueReport struct {
	LeagueID     string                `json:"league_id"`
	RunID        string                `json:"run_id"`
	GameType     string                `json:"game_type"`
	CompletedAt  time.Time             `json:"completed_at"`
	TotalRounds  int                   `json:"total_rounds"`
	TotalMatches int                   `json:"total_matches"`
	Champion     *models.Standing      `json:"champion,omitempty"`
	Standings    []models.Standing     `json:"standings"`
	Matches      []*models.MatchRecord `json:"matches"`
}

type LeagueService interface {
	// Run drives the league from registration to completion. It returns once
	// the league is complete or ctx ends.
	Run(ctx context.Context) error
	ReportMatchResult(ctx context.Context, report *models.MatchResultReport) (*models.ReportAck, error)

	Snapshot() *models.LeagueSnapshot
	Standings() []models.Standing
	Phase() models.LeaguePhase
	// Done is closed when the league reaches COMPLETE.
	Done() <-chan struct{}
}

type LeagueOption func(*leagueService)

func WithEventPublisher(p EventPublisher) LeagueOption {
	return func(s *leagueService) { s.events = p }
}

func WithReporters(reporters ...LeagueReporter) LeagueOption {
	return func(s *leagueService) { s.reporters = append(s.reporters, reporters...) }
}

// WithOperatorOutput sets where standings tables are printed. Defaults to stdout.
func WithOperatorOutput(w io.Writer) LeagueOption {
	return func(s *leagueService) { s.operator = w }
}

type leagueService struct {
	cfg       LeagueConfig
	registry  RegistryService
	generator brackets.ScheduleGenerator
	caller    gateway.Caller
	notifier  *gateway.Notifier
	repo      repositories.LeagueRepository
	events    EventPublisher
	reporters []LeagueReporter
	operator  io.Writer
	logger    *slog.Logger
	runID     string

	started atomic.Bool
	done    chan struct{}

	mu              sync.Mutex
	phase           models.LeaguePhase
	schedule        []models.ScheduleEntry
	matches         map[string]*models.MatchRecord
	rounds          map[int]*models.RoundTracking
	roundOrder      []int
	roundDone       map[int]chan struct{}
	completedRounds map[int]bool
	currentRound    int
}

func NewLeagueService(
	cfg LeagueConfig,
	registry RegistryService,
	generator brackets.ScheduleGenerator,
	caller gateway.Caller,
	notifier *gateway.Notifier,
	repo repositories.LeagueRepository,
	logger *slog.Logger,
	opts ...LeagueOption,
) LeagueService {
	if cfg.MinPlayers < 2 {
		cfg.MinPlayers = 2
	}
	if repo == nil {
		repo = repositories.NewMemoryLeagueRepository()
	}
	s := &leagueService{
		cfg:             cfg,
		registry:        registry,
		generator:       generator,
		caller:          caller,
		notifier:        notifier,
		repo:            repo,
		operator:        os.Stdout,
		logger:          logger.With(slog.String("league_id", cfg.LeagueID)),
		runID:           uuidv7.New().String(),
		done:            make(chan struct{}),
		phase:           models.PhaseRegistering,
		matches:         make(map[string]*models.MatchRecord),
		rounds:          make(map[int]*models.RoundTracking),
		roundDone:       make(map[int]chan struct{}),
		completedRounds: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *leagueService) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("league run already started")
	}
	s.logger.Info("league registration open",
		slog.String("run_id", s.runID),
		slog.Duration("registration_timeout", s.cfg.RegistrationTimeout),
	)

	timer := time.NewTimer(s.cfg.RegistrationTimeout)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	if err := s.closeRegistration(ctx); err != nil {
		return err
	}
	if err := s.runRounds(ctx); err != nil {
		return err
	}
	s.finalize(ctx)
	return nil
}

// closeRegistration closes the window, snapshots players in registration
// order and builds the schedule.
func (s *leagueService) closeRegistration(ctx context.Context) error {
	s.registry.CloseRegistration()

	players := s.registry.Players()
	if len(players) < s.cfg.MinPlayers {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, len(players), s.cfg.MinPlayers)
	}
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}

	schedule, err := s.generator.GenerateSchedule(ids)
	if err != nil {
		return fmt.Errorf("failed to generate schedule: %w", err)
	}

	s.mu.Lock()
	s.schedule = schedule
	for _, e := range schedule {
		s.matches[e.MatchID()] = models.NewMatchRecord(e)
		rt, ok := s.rounds[e.RoundID]
		if !ok {
			rt = &models.RoundTracking{RoundID: e.RoundID, Status: models.RoundStatusPending}
			s.rounds[e.RoundID] = rt
			s.roundOrder = append(s.roundOrder, e.RoundID)
			s.roundDone[e.RoundID] = make(chan struct{})
		}
		rt.MatchIDs = append(rt.MatchIDs, e.MatchID())
	}
	sort.Ints(s.roundOrder)
	s.mu.Unlock()

	if err := s.repo.SaveSchedule(ctx, s.cfg.LeagueID, schedule); err != nil {
		s.logger.Error("failed to persist schedule", slog.Any("error", err))
	}

	s.logger.Info("schedule generated",
		slog.String("generator", s.generator.GetName()),
		slog.Int("players", len(ids)),
		slog.Int("matches", len(schedule)),
		slog.Int("rounds", len(s.roundOrder)),
	)
	s.setPhase(models.PhaseScheduled)
	return nil
}

func (s *leagueService) runRounds(ctx context.Context) error {
	s.setPhase(models.PhaseRunningRounds)

	s.mu.Lock()
	order := append([]int(nil), s.roundOrder...)
	s.mu.Unlock()

	for _, roundID := range order {
		if err := s.startRound(ctx, roundID); err != nil {
			return err
		}
		s.mu.Lock()
		done := s.roundDone[roundID]
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *leagueService) startRound(ctx context.Context, roundID int) error {
	referees := s.activeReferees()
	if len(referees) == 0 {
		return fmt.Errorf("%w for game type %s", ErrNoReferees, s.cfg.GameType)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.currentRound = roundID
	rt := s.rounds[roundID]
	rt.Status = models.RoundStatusInProgress
	rt.StartedAt = &now
	entries := s.roundEntriesLocked(roundID)
	roundCopy := cloneRound(rt)
	s.mu.Unlock()

	s.persistRound(ctx, roundCopy)
	s.publish(brackets.EventRoundStarted, map[string]any{"round_id": roundID, "matches": len(entries)})
	s.logger.Info("round started", slog.Int("round_id", roundID), slog.Int("matches", len(entries)))

	s.announceRound(ctx, roundID, entries, referees)

	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			s.dispatchMatch(ctx, e, referees, i)
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (s *leagueService) activeReferees() []*models.Participant {
	var out []*models.Participant
	for _, r := range s.registry.Referees() {
		if r.SupportsGame(s.cfg.GameType) {
			out = append(out, r)
		}
	}
	return out
}

func (s *leagueService) roundEntriesLocked(roundID int) []models.ScheduleEntry {
	var out []models.ScheduleEntry
	for _, e := range s.schedule {
		if e.RoundID == roundID {
			out = append(out, e)
		}
	}
	return out
}

func (s *leagueService) announceRound(ctx context.Context, roundID int, entries []models.ScheduleEntry, referees []*models.Participant) {
	matches := make([]models.AnnouncedMatch, 0, len(entries))
	for i, e := range entries {
		matches = append(matches, models.AnnouncedMatch{
			MatchID:         e.MatchID(),
			GameType:        s.cfg.GameType,
			PlayerA:         e.PlayerA,
			PlayerB:         e.PlayerB,
			RefereeEndpoint: referees[i%len(referees)].Endpoint,
		})
	}
	msg := &models.RoundAnnouncement{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgRoundAnnouncement,
		Sender:         models.ManagerSender,
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("round"),
		LeagueID:       s.cfg.LeagueID,
		RoundID:        roundID,
		Matches:        matches,
	}
	targets := participantTargets(s.registry.Players())
	delivered := s.notifier.Broadcast(ctx, targets, models.ToolNotifyRound, func(gateway.Target) any { return msg })
	s.logger.Info("round announced", slog.Int("round_id", roundID), slog.Int("delivered", delivered), slog.Int("targets", len(targets)))
}

// dispatchMatch hands the match to a referee, starting from the rotation slot
// and falling through to the next referee on failure. When nobody accepts the
// match is closed as a technical loss so its round can still complete.
func (s *leagueService) dispatchMatch(ctx context.Context, e models.ScheduleEntry, referees []*models.Participant, slot int) {
	matchID := e.MatchID()
	playerA, _ := s.registry.Participant(e.PlayerA)
	playerB, _ := s.registry.Participant(e.PlayerB)

	for attempt := 0; attempt < len(referees); attempt++ {
		ref := referees[(slot+attempt)%len(referees)]
		if !s.markDispatched(matchID, ref.ID) {
			return
		}
		s.persistMatch(ctx, matchID)

		req := &models.StartMatchRequest{
			Protocol:       models.ProtocolName,
			MessageType:    models.MsgStartMatch,
			Sender:         models.ManagerSender,
			Timestamp:      timestampNow(),
			ConversationID: newConversationID("match"),
			LeagueID:       s.cfg.LeagueID,
			RoundID:        e.RoundID,
			MatchID:        matchID,
			GameType:       s.cfg.GameType,
			PlayerA:        e.PlayerA,
			PlayerB:        e.PlayerB,
		}
		if playerA != nil {
			req.PlayerAEndpoint = playerA.Endpoint
		}
		if playerB != nil {
			req.PlayerBEndpoint = playerB.Endpoint
		}

		var resp models.StartMatchResponse
		err := s.caller.Call(ctx, ref.Endpoint, models.ToolStartMatch, req, &resp)
		if err == nil {
			s.logger.Info("match dispatched",
				slog.String("match_id", matchID),
				slog.String("referee_id", ref.ID),
				slog.String("status", resp.Status),
			)
			return
		}
		// Повторная доставка: судья уже принял матч по первому запросу,
		// ответ на который не дошёл.
		if isMatchAlreadyRunning(err) {
			s.logger.Info("match already running on referee",
				slog.String("match_id", matchID),
				slog.String("referee_id", ref.ID),
			)
			return
		}
		s.logger.Warn("referee did not accept match",
			slog.String("match_id", matchID),
			slog.String("referee_id", ref.ID),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			return
		}
	}

	result := &models.MatchResult{
		Score: map[string]int{
			e.PlayerA: s.cfg.Points.TechnicalLoss,
			e.PlayerB: s.cfg.Points.TechnicalLoss,
		},
		Details: map[string]any{"technical_loss": true, "reason": reasonNoRefereeAccepted},
	}
	if _, err := s.recordResult(ctx, matchID, "", result); err != nil {
		s.logger.Error("failed to close undispatched match", slog.String("match_id", matchID), slog.Any("error", err))
	}
}

func isMatchAlreadyRunning(err error) bool {
	te, ok := gateway.AsToolError(err)
	return ok && te.Message == DescMatchAlreadyRunning
}

// markDispatched assigns the referee and moves the match to IN_PROGRESS. It
// returns false when the match already reached a terminal state.
func (s *leagueService) markDispatched(matchID, refereeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.matches[matchID]
	if rec == nil || rec.IsTerminal() {
		return false
	}
	now := time.Now().UTC()
	rec.RefereeID = refereeID
	rec.Status = models.MatchStatusInProgress
	rec.DispatchedAt = &now
	return true
}

func (s *leagueService) ReportMatchResult(ctx context.Context, report *models.MatchResultReport) (*models.ReportAck, error) {
	if report == nil {
		return nil, missingField("result")
	}
	sender, err := s.registry.Authenticate(report.Sender, report.AuthToken)
	if err != nil {
		s.logger.Warn("match report rejected", slog.String("sender", report.Sender), slog.String("match_id", report.MatchID), slog.Any("error", err))
		return nil, err
	}
	if sender.Role != models.RoleReferee {
		return nil, fmt.Errorf("%w: only referees report results", ErrForbiddenOperation)
	}
	if report.MatchID == "" {
		return nil, missingField("match_id")
	}
	if report.Result == nil {
		return nil, missingField("result")
	}
	if report.LeagueID != "" && report.LeagueID != s.cfg.LeagueID {
		return nil, fmt.Errorf("%w: league %s", ErrUnknownMatch, report.LeagueID)
	}

	if _, err := s.recordResult(ctx, report.MatchID, sender.ID, report.Result); err != nil {
		s.logger.Warn("match report rejected",
			slog.String("sender", report.Sender),
			slog.String("match_id", report.MatchID),
			slog.Any("error", err),
		)
		return nil, err
	}
	return &models.ReportAck{Status: "OK", MatchID: report.MatchID}, nil
}

// recordResult is the single writer of terminal match state. The check and
// the write happen under one lock so exactly one report per match wins; the
// round completion it may trigger is likewise claimed exactly once.
// refereeID is empty when the manager itself closes the match.
func (s *leagueService) recordResult(ctx context.Context, matchID, refereeID string, result *models.MatchResult) (*models.MatchRecord, error) {
	s.mu.Lock()
	rec, ok := s.matches[matchID]
	switch {
	case !ok || rec.Status == models.MatchStatusPending:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	case rec.IsTerminal():
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReport, matchID)
	case refereeID != "" && rec.RefereeID != refereeID:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: match %s is assigned to %s", ErrForbiddenOperation, matchID, rec.RefereeID)
	}
	if err := validateResult(rec, result); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := time.Now().UTC()
	rec.Winner = nil
	if result.Winner != nil {
		rec.Winner = stringPtr(*result.Winner)
	}
	rec.Score = make(map[string]int, len(result.Score))
	for id, pts := range result.Score {
		rec.Score[id] = pts
	}
	rec.Details = make(map[string]any, len(result.Details))
	for k, v := range result.Details {
		rec.Details[k] = v
	}
	rec.CompletedAt = &now
	rec.Status = models.MatchStatusCompleted
	if rec.IsTechnicalLoss() {
		rec.Status = models.MatchStatusTechnicalLoss
	}

	rt := s.rounds[rec.RoundID]
	rt.CompletedCount++
	roundFinished := false
	if rt.CompletedCount == rt.Expected() && rt.Status != models.RoundStatusCompleted {
		rt.Status = models.RoundStatusCompleted
		rt.CompletedAt = &now
		s.completedRounds[rt.RoundID] = true
		roundFinished = true
	}
	recorded := rec.Clone()
	completed, expected := rt.CompletedCount, rt.Expected()
	s.mu.Unlock()

	s.logger.Info("match result recorded",
		slog.String("match_id", matchID),
		slog.Int("round_id", recorded.RoundID),
		slog.String("status", string(recorded.Status)),
		slog.String("winner", derefString(recorded.Winner)),
		slog.Int("round_completed", completed),
		slog.Int("round_expected", expected),
	)
	if err := s.repo.SaveMatch(ctx, s.cfg.LeagueID, recorded); err != nil {
		s.logger.Error("failed to persist match", slog.String("match_id", matchID), slog.Any("error", err))
	}
	s.publish(brackets.EventMatchRecorded, recorded)

	if roundFinished {
		go s.completeRound(context.WithoutCancel(ctx), recorded.RoundID)
	}
	return recorded, nil
}

func validateResult(rec *models.MatchRecord, result *models.MatchResult) error {
	if result.Winner != nil && !rec.HasPlayer(*result.Winner) {
		return fmt.Errorf("%w: winner %s did not play %s", ErrInvalidResult, *result.Winner, rec.MatchID)
	}
	if len(result.Score) == 0 {
		return fmt.Errorf("%w: empty score", ErrInvalidResult)
	}
	for id := range result.Score {
		if !rec.HasPlayer(id) {
			return fmt.Errorf("%w: %s did not play %s", ErrInvalidResult, id, rec.MatchID)
		}
	}
	for _, id := range []string{rec.PlayerA, rec.PlayerB} {
		if _, ok := result.Score[id]; !ok {
			return fmt.Errorf("%w: no score for %s in %s", ErrInvalidResult, id, rec.MatchID)
		}
	}
	return nil
}

// completeRound runs the side effects of a finished round. recordResult calls
// it at most once per round.
func (s *leagueService) completeRound(ctx context.Context, roundID int) {
	s.mu.Lock()
	rt := cloneRound(s.rounds[roundID])
	summary := s.roundSummaryLocked(roundID)
	nextRound := s.nextRoundLocked(roundID)
	s.mu.Unlock()

	standings := s.Standings()

	s.persistRound(ctx, rt)
	if err := s.repo.SaveStandings(ctx, &models.StandingsSnapshot{
		LeagueID:  s.cfg.LeagueID,
		RoundID:   roundID,
		Standings: standings,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("failed to persist standings", slog.Int("round_id", roundID), slog.Any("error", err))
	}

	if err := WriteStandingsTable(s.operator, fmt.Sprintf("Standings after round %d", roundID), standings); err != nil {
		s.logger.Warn("failed to print standings", slog.Any("error", err))
	}

	players := participantTargets(s.registry.Players())

	update := &models.StandingsUpdate{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgStandingsUpdate,
		Sender:         models.ManagerSender,
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("standings"),
		LeagueID:       s.cfg.LeagueID,
		RoundID:        roundID,
		Standings:      standings,
	}
	s.notifier.Broadcast(ctx, players, models.ToolNotifyStandings, func(gateway.Target) any { return update })
	s.publish(brackets.EventStandingsUpdate, update)

	completed := &models.RoundCompleted{
		Protocol:         models.ProtocolName,
		MessageType:      models.MsgRoundCompleted,
		Sender:           models.ManagerSender,
		Timestamp:        timestampNow(),
		ConversationID:   newConversationID("round"),
		LeagueID:         s.cfg.LeagueID,
		RoundID:          roundID,
		MatchesCompleted: rt.CompletedCount,
		NextRoundID:      nextRound,
		Summary:          summary,
	}
	s.notifier.Broadcast(ctx, players, models.ToolNotifyRoundCompleted, func(gateway.Target) any { return completed })
	s.publish(brackets.EventRoundCompleted, completed)

	s.logger.Info("round completed",
		slog.Int("round_id", roundID),
		slog.Int("matches", rt.CompletedCount),
		slog.Int("technical_losses", summary.TechnicalLosses),
	)

	s.mu.Lock()
	close(s.roundDone[roundID])
	s.mu.Unlock()
}

func (s *leagueService) roundSummaryLocked(roundID int) *models.RoundSummary {
	summary := &models.RoundSummary{}
	for _, id := range s.rounds[roundID].MatchIDs {
		rec := s.matches[id]
		if !rec.IsTerminal() {
			continue
		}
		summary.TotalMatches++
		switch {
		case rec.IsTechnicalLoss():
			summary.TechnicalLosses++
		case rec.Winner == nil:
			summary.Draws++
		default:
			summary.Wins++
		}
	}
	return summary
}

func (s *leagueService) nextRoundLocked(roundID int) *int {
	for _, r := range s.roundOrder {
		if r > roundID {
			next := r
			return &next
		}
	}
	return nil
}

func (s *leagueService) finalize(ctx context.Context) {
	s.setPhase(models.PhaseComplete)

	standings := s.Standings()
	snap := s.Snapshot()

	if err := WriteStandingsTable(s.operator, "Final standings", standings); err != nil {
		s.logger.Warn("failed to print standings", slog.Any("error", err))
	}

	msg := &models.LeagueCompleted{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgLeagueCompleted,
		Sender:         models.ManagerSender,
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("league"),
		LeagueID:       s.cfg.LeagueID,
		TotalRounds:    snap.TotalRounds,
		TotalMatches:   len(snap.Schedule),
		FinalStandings: finalStandings(standings),
	}
	champion := Champion(standings)
	if champion != nil {
		msg.Champion = &models.Champion{
			PlayerID:    champion.ParticipantID,
			DisplayName: champion.DisplayName,
			Points:      champion.Points,
		}
		s.logger.Info("league champion",
			slog.String("player_id", champion.ParticipantID),
			slog.String("display_name", champion.DisplayName),
			slog.Int("points", champion.Points),
		)
	}

	targets := append(participantTargets(s.registry.Players()), participantTargets(s.registry.Referees())...)
	delivered := s.notifier.Broadcast(ctx, targets, models.ToolNotifyLeagueComplete, func(gateway.Target) any { return msg })
	s.publish(brackets.EventLeagueCompleted, msg)

	report := &LeagueReport{
		LeagueID:     s.cfg.LeagueID,
		RunID:        s.runID,
		GameType:     s.cfg.GameType,
		CompletedAt:  time.Now().UTC(),
		TotalRounds:  snap.TotalRounds,
		TotalMatches: len(snap.Schedule),
		Champion:     champion,
		Standings:    standings,
		Matches:      scheduledMatches(snap),
	}
	for _, r := range s.reporters {
		if err := r.PublishReport(ctx, report); err != nil {
			s.logger.Error("failed to publish league report", slog.Any("error", err))
		}
	}

	s.logger.Info("league completed",
		slog.String("run_id", s.runID),
		slog.Int("rounds", snap.TotalRounds),
		slog.Int("matches", len(snap.Schedule)),
		slog.Int("notified", delivered),
	)
	close(s.done)
}

func (s *leagueService) Standings() []models.Standing {
	s.mu.Lock()
	results := make(map[string]*models.MatchRecord, len(s.matches))
	for id, m := range s.matches {
		if m.IsTerminal() {
			results[id] = m.Clone()
		}
	}
	s.mu.Unlock()

	names := make(map[string]string)
	for _, p := range s.registry.Players() {
		names[p.ID] = p.DisplayName
	}
	return WithDisplayNames(CalculateStandings(results), names)
}

func (s *leagueService) Snapshot() *models.LeagueSnapshot {
	s.mu.Lock()
	snap := &models.LeagueSnapshot{
		LeagueID:     s.cfg.LeagueID,
		RunID:        s.runID,
		GameType:     s.cfg.GameType,
		Phase:        s.phase,
		CurrentRound: s.currentRound,
		TotalRounds:  brackets.TotalRounds(s.schedule),
		Schedule:     append([]models.ScheduleEntry(nil), s.schedule...),
		Matches:      make(map[string]*models.MatchRecord, len(s.matches)),
	}
	for id, m := range s.matches {
		snap.Matches[id] = m.Clone()
	}
	for _, r := range s.roundOrder {
		snap.Rounds = append(snap.Rounds, *cloneRound(s.rounds[r]))
		if s.completedRounds[r] {
			snap.CompletedRounds = append(snap.CompletedRounds, r)
		}
	}
	s.mu.Unlock()

	snap.Players = s.registry.Players()
	snap.Referees = s.registry.Referees()
	return snap
}

func (s *leagueService) Phase() models.LeaguePhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *leagueService) Done() <-chan struct{} {
	return s.done
}

func (s *leagueService) setPhase(phase models.LeaguePhase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = phase
	s.mu.Unlock()

	s.logger.Info("league phase changed", slog.String("from", string(prev)), slog.String("to", string(phase)))
	s.publish(brackets.EventPhaseChanged, map[string]string{"from": string(prev), "to": string(phase)})
}

func (s *leagueService) publish(eventType string, payload any) {
	if s.events != nil {
		s.events.Publish(s.cfg.LeagueID, eventType, payload)
	}
}

func (s *leagueService) persistMatch(ctx context.Context, matchID string) {
	s.mu.Lock()
	rec := s.matches[matchID].Clone()
	s.mu.Unlock()
	if err := s.repo.SaveMatch(ctx, s.cfg.LeagueID, rec); err != nil {
		s.logger.Error("failed to persist match", slog.String("match_id", matchID), slog.Any("error", err))
	}
}

func (s *leagueService) persistRound(ctx context.Context, rt *models.RoundTracking) {
	if err := s.repo.SaveRound(ctx, s.cfg.LeagueID, rt); err != nil {
		s.logger.Error("failed to persist round", slog.Int("round_id", rt.RoundID), slog.Any("error", err))
	}
}

func cloneRound(rt *models.RoundTracking) *models.RoundTracking {
	c := *rt
	c.MatchIDs = append([]string(nil), rt.MatchIDs...)
	return &c
}

// scheduledMatches lists the snapshot's match records in schedule order.
func scheduledMatches(snap *models.LeagueSnapshot) []*models.MatchRecord {
	out := make([]*models.MatchRecord, 0, len(snap.Schedule))
	for _, e := range snap.Schedule {
		if m, ok := snap.Matches[e.MatchID()]; ok {
			out = append(out, m)
		}
	}
	return out
}

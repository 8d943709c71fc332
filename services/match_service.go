package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
)

const (
	reasonInvitationFailure = "invitation timeout/failure"
	reasonChoiceFailure     = "choice timeout/failure"
	reasonResolveFailure    = "resolution failure"
)

// RefereeIdentity is what the referee received from the manager at registration.
type RefereeIdentity struct {
	RefereeID string
	AuthToken string
	LeagueID  string
}

func (id RefereeIdentity) Sender() string {
	return models.FormatSender(models.RoleReferee, id.RefereeID)
}

type CoordinatorConfig struct {
	ManagerEndpoint  string
	DefaultGameType  string
	ChoiceTimeout    time.Duration
	ChoiceAttempts   int
	ChoiceRetryDelay time.Duration
	Points           games.Points
}

// MatchOutcome is what a coordinator run ended with.
type MatchOutcome struct {
	MatchID  string
	Phase    models.MatchPhase
	Result   *models.MatchResult
	Reported bool
}

var allowedMatchTransitions = map[models.MatchPhase][]models.MatchPhase{
	"":                                 {models.MatchPhaseInviting},
	models.MatchPhaseInviting:          {models.MatchPhaseCollectingChoices, models.MatchPhaseTechnicalLoss},
	models.MatchPhaseCollectingChoices: {models.MatchPhaseResolving, models.MatchPhaseTechnicalLoss},
	models.MatchPhaseResolving:         {models.MatchPhaseNotifying, models.MatchPhaseTechnicalLoss},
	models.MatchPhaseNotifying:         {models.MatchPhaseReporting},
	models.MatchPhaseReporting:         {models.MatchPhaseDone},
}

func isValidMatchTransition(current, next models.MatchPhase) bool {
	for _, allowed := range allowedMatchTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MatchCoordinator drives one match at a time per call of RunMatch; calls for
// different matches share nothing but the identity and the callers.
type MatchCoordinator struct {
	cfg       CoordinatorConfig
	resolvers *games.Registry
	// caller retries transport failures; direct makes single attempts and is
	// used where the coordinator runs its own retry loop or delivery is best-effort.
	caller   gateway.Caller
	direct   gateway.Caller
	notifier *gateway.Notifier
	logger   *slog.Logger
	observer func(matchID string, phase models.MatchPhase)

	identity atomic.Pointer[RefereeIdentity]
}

func NewMatchCoordinator(
	cfg CoordinatorConfig,
	resolvers *games.Registry,
	caller gateway.Caller,
	direct gateway.Caller,
	logger *slog.Logger,
) *MatchCoordinator {
	if cfg.ChoiceAttempts <= 0 {
		cfg.ChoiceAttempts = 1
	}
	return &MatchCoordinator{
		cfg:       cfg,
		resolvers: resolvers,
		caller:    caller,
		direct:    direct,
		notifier:  gateway.NewNotifier(direct, logger),
		logger:    logger,
	}
}

func (c *MatchCoordinator) SetIdentity(id RefereeIdentity) {
	c.identity.Store(&id)
}

func (c *MatchCoordinator) Identity() (RefereeIdentity, bool) {
	id := c.identity.Load()
	if id == nil {
		return RefereeIdentity{}, false
	}
	return *id, true
}

// Resolver returns the resolver for gameType, or the default game when empty.
func (c *MatchCoordinator) Resolver(gameType string) (games.Resolver, error) {
	if gameType == "" {
		gameType = c.cfg.DefaultGameType
	}
	return c.resolvers.Get(gameType)
}

// match holds the state one RunMatch call owns.
type match struct {
	req      *models.StartMatchRequest
	resolver games.Resolver
	phase    models.MatchPhase
	logger   *slog.Logger
}

func (c *MatchCoordinator) transition(m *match, next models.MatchPhase) {
	if !isValidMatchTransition(m.phase, next) {
		// Programming error: keep the current phase so the match still ends.
		m.logger.Error("invalid match phase transition", slog.String("from", string(m.phase)), slog.String("to", string(next)))
		return
	}
	m.logger.Debug("match phase", slog.String("from", string(m.phase)), slog.String("to", string(next)))
	m.phase = next
	if c.observer != nil {
		c.observer(m.req.MatchID, next)
	}
}

// RunMatch plays the match end to end. Participant failures never surface as
// errors: they end the match as a technical loss which is still reported.
func (c *MatchCoordinator) RunMatch(ctx context.Context, req *models.StartMatchRequest) (*MatchOutcome, error) {
	resolver, err := c.Resolver(req.GameType)
	if err != nil {
		return nil, err
	}
	m := &match{
		req:      req,
		resolver: resolver,
		logger: c.logger.With(
			slog.String("match_id", req.MatchID),
			slog.Int("round_id", req.RoundID),
		),
	}
	m.logger.Info("match started", slog.String("player_a", req.PlayerA), slog.String("player_b", req.PlayerB))

	c.transition(m, models.MatchPhaseInviting)
	if failed := c.invite(ctx, m); len(failed) > 0 {
		return c.technicalLoss(ctx, m, failed, reasonInvitationFailure), nil
	}

	c.transition(m, models.MatchPhaseCollectingChoices)
	choices, failed := c.collectChoices(ctx, m)
	if len(failed) > 0 {
		return c.technicalLoss(ctx, m, failed, reasonChoiceFailure), nil
	}

	c.transition(m, models.MatchPhaseResolving)
	outcome, err := resolver.Resolve(req.PlayerA, choices[req.PlayerA], req.PlayerB, choices[req.PlayerB])
	if err != nil {
		// Выборы уже проверены: это дефект резолвера, но матч всё равно закрываем.
		m.logger.Error("failed to resolve match", slog.Any("error", err))
		return c.technicalLoss(ctx, m, nil, reasonResolveFailure), nil
	}
	result := &models.MatchResult{Score: outcome.Scores, Details: outcome.Details}
	if !outcome.IsDraw() {
		result.Winner = stringPtr(outcome.Winner)
	}

	c.transition(m, models.MatchPhaseNotifying)
	status := models.GameStatusWin
	if outcome.IsDraw() {
		status = models.GameStatusDraw
	}
	c.notifyGameOver(ctx, m, c.gameResult(status, result, choices))

	c.transition(m, models.MatchPhaseReporting)
	reported := c.report(ctx, m, result)

	c.transition(m, models.MatchPhaseDone)
	m.logger.Info("match completed",
		slog.String("winner", derefString(result.Winner)),
		slog.Bool("reported", reported),
	)
	return &MatchOutcome{MatchID: req.MatchID, Phase: m.phase, Result: result, Reported: reported}, nil
}

type side struct {
	playerID   string
	opponentID string
	endpoint   string
	role       string
}

func sides(req *models.StartMatchRequest) [2]side {
	return [2]side{
		{playerID: req.PlayerA, opponentID: req.PlayerB, endpoint: req.PlayerAEndpoint, role: "PLAYER_A"},
		{playerID: req.PlayerB, opponentID: req.PlayerA, endpoint: req.PlayerBEndpoint, role: "PLAYER_B"},
	}
}

// invite sends both invitations concurrently and returns the players that
// did not acknowledge.
func (c *MatchCoordinator) invite(ctx context.Context, m *match) []string {
	identity, _ := c.Identity()
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []string
	)
	for _, sd := range sides(m.req) {
		g.Go(func() error {
			inv := &models.GameInvitation{
				Protocol:       models.ProtocolName,
				MessageType:    models.MsgGameInvitation,
				Sender:         identity.Sender(),
				Timestamp:      timestampNow(),
				ConversationID: newConversationID("invite"),
				AuthToken:      identity.AuthToken,
				LeagueID:       m.req.LeagueID,
				RoundID:        m.req.RoundID,
				MatchID:        m.req.MatchID,
				GameType:       m.resolver.GameType(),
				RoleInMatch:    sd.role,
				OpponentID:     sd.opponentID,
			}
			if err := c.caller.Call(ctx, sd.endpoint, models.ToolReceiveInvitation, inv, nil); err != nil {
				m.logger.Warn("invitation failed", slog.String("player_id", sd.playerID), slog.Any("error", err))
				mu.Lock()
				failed = append(failed, sd.playerID)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)
	return failed
}

// collectChoices asks both players concurrently. Each player gets up to
// ChoiceAttempts tries, each bounded by ChoiceTimeout.
func (c *MatchCoordinator) collectChoices(ctx context.Context, m *match) (map[string]string, []string) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		choices = make(map[string]string, 2)
		failed  []string
	)
	for _, sd := range sides(m.req) {
		g.Go(func() error {
			choice, err := c.collectChoice(ctx, m, sd)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn("no valid choice", slog.String("player_id", sd.playerID), slog.Any("error", err))
				failed = append(failed, sd.playerID)
				return nil
			}
			choices[sd.playerID] = choice
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)
	return choices, failed
}

func (c *MatchCoordinator) collectChoice(ctx context.Context, m *match, sd side) (string, error) {
	identity, _ := c.Identity()
	policy := gateway.RetryPolicy{Attempts: c.cfg.ChoiceAttempts, Delay: c.cfg.ChoiceRetryDelay}

	var (
		choice  string
		attempt int
	)
	err := gateway.Retry(ctx, policy, func() error {
		attempt++
		call := &models.ChooseParityCall{
			Protocol:       models.ProtocolName,
			MessageType:    models.MsgChooseParityCall,
			Sender:         identity.Sender(),
			Timestamp:      timestampNow(),
			ConversationID: newConversationID("parity"),
			AuthToken:      identity.AuthToken,
			LeagueID:       m.req.LeagueID,
			MatchID:        m.req.MatchID,
			PlayerID:       sd.playerID,
			GameType:       m.resolver.GameType(),
			Deadline:       models.Timestamp(time.Now().Add(c.cfg.ChoiceTimeout)),
			Context: &models.ChoiceContext{
				OpponentID: sd.opponentID,
				RoundID:    m.req.RoundID,
			},
		}
		var err error
		choice, err = c.askChoice(ctx, sd.endpoint, call, m.resolver)
		return err
	}, func(err error, _ time.Duration) {
		m.logger.Debug("choice attempt failed",
			slog.String("player_id", sd.playerID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return "", fmt.Errorf("%d attempts: %w", attempt, err)
	}
	return choice, nil
}

func (c *MatchCoordinator) askChoice(ctx context.Context, endpoint string, call *models.ChooseParityCall, resolver games.Resolver) (string, error) {
	callCtx := ctx
	if c.cfg.ChoiceTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.ChoiceTimeout)
		defer cancel()
	}
	var resp models.ChooseParityResponse
	if err := c.direct.Call(callCtx, endpoint, models.ToolChooseParity, call, &resp); err != nil {
		return "", err
	}
	if err := resolver.ValidateChoice(resp.ParityChoice); err != nil {
		return "", err
	}
	return resp.ParityChoice, nil
}

// technicalLoss closes the match against the players in failed. A single
// failing side loses to the other; when both failed nobody wins.
func (c *MatchCoordinator) technicalLoss(ctx context.Context, m *match, failed []string, reason string) *MatchOutcome {
	c.transition(m, models.MatchPhaseTechnicalLoss)

	req := m.req
	pts := c.cfg.Points
	result := &models.MatchResult{
		Score: map[string]int{
			req.PlayerA: pts.TechnicalLoss,
			req.PlayerB: pts.TechnicalLoss,
		},
		Details: map[string]any{
			"technical_loss": true,
			"reason":         reason,
			"failed_players": failed,
		},
	}
	if len(failed) == 1 {
		winner := req.PlayerA
		if failed[0] == req.PlayerA {
			winner = req.PlayerB
		}
		result.Winner = stringPtr(winner)
		result.Score[winner] = pts.Win
	}

	m.logger.Warn("match ended by technical loss",
		slog.String("reason", reason),
		slog.Any("failed_players", failed),
		slog.String("winner", derefString(result.Winner)),
	)

	c.notifyGameOver(ctx, m, c.gameResult(models.GameStatusTechnicalLoss, result, nil))
	reported := c.report(ctx, m, result)
	return &MatchOutcome{MatchID: req.MatchID, Phase: m.phase, Result: result, Reported: reported}
}

func (c *MatchCoordinator) gameResult(status models.GameStatus, result *models.MatchResult, choices map[string]string) *models.GameResult {
	gr := &models.GameResult{
		Status:         status,
		WinnerPlayerID: result.Winner,
		Choices:        choices,
	}
	if n, ok := result.Details["drawn_number"].(int); ok {
		gr.DrawnNumber = n
	}
	if p, ok := result.Details["number_parity"].(string); ok {
		gr.NumberParity = p
	}
	if r, ok := result.Details["reason"].(string); ok {
		gr.Reason = r
	}
	return gr
}

// notifyGameOver tells both players the outcome. Delivery is best-effort.
func (c *MatchCoordinator) notifyGameOver(ctx context.Context, m *match, gr *models.GameResult) {
	identity, _ := c.Identity()
	targets := make([]gateway.Target, 0, 2)
	for _, sd := range sides(m.req) {
		targets = append(targets, gateway.Target{ID: sd.playerID, Endpoint: sd.endpoint})
	}
	msg := &models.GameOver{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgGameOver,
		Sender:         identity.Sender(),
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("game-over"),
		AuthToken:      identity.AuthToken,
		MatchID:        m.req.MatchID,
		GameType:       m.resolver.GameType(),
		GameResult:     gr,
	}
	c.notifier.Broadcast(ctx, targets, models.ToolReceiveGameOver, func(gateway.Target) any { return msg })
}

// report sends the result to the manager through the retrying caller.
func (c *MatchCoordinator) report(ctx context.Context, m *match, result *models.MatchResult) bool {
	identity, ok := c.Identity()
	if !ok {
		m.logger.Error("cannot report result: referee is not registered")
		return false
	}
	leagueID := m.req.LeagueID
	if leagueID == "" {
		leagueID = identity.LeagueID
	}
	report := &models.MatchResultReport{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgMatchResultReport,
		Sender:         identity.Sender(),
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("report"),
		AuthToken:      identity.AuthToken,
		LeagueID:       leagueID,
		RoundID:        m.req.RoundID,
		MatchID:        m.req.MatchID,
		GameType:       m.resolver.GameType(),
		Result:         result,
	}
	var ack models.ReportAck
	if err := c.caller.Call(ctx, c.cfg.ManagerEndpoint, models.ToolReportMatchResult, report, &ack); err != nil {
		m.logger.Error("failed to report match result", slog.Any("error", err))
		return false
	}
	return true
}

// MatchRunner accepts start_match requests and runs them in the background,
// at most maxConcurrent at a time.
type MatchRunner struct {
	coordinator *MatchCoordinator
	slots       *semaphore.Weighted
	ctx         context.Context
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]models.MatchPhase
	wg     sync.WaitGroup
}

// NewMatchRunner ties background matches to ctx so shutdown stops them.
func NewMatchRunner(ctx context.Context, coordinator *MatchCoordinator, maxConcurrent int, logger *slog.Logger) *MatchRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	r := &MatchRunner{
		coordinator: coordinator,
		slots:       semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:         ctx,
		logger:      logger,
		active:      make(map[string]models.MatchPhase),
	}
	coordinator.observer = r.track
	return r
}

// Start validates req and schedules the match. It returns as soon as the
// match is accepted.
func (r *MatchRunner) Start(req *models.StartMatchRequest) (*models.StartMatchResponse, error) {
	if err := validateStartMatch(req); err != nil {
		return nil, err
	}
	if _, err := r.coordinator.Resolver(req.GameType); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, running := r.active[req.MatchID]; running {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMatchAlreadyRunning, req.MatchID)
	}
	r.active[req.MatchID] = ""
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(req)

	return &models.StartMatchResponse{Status: "STARTED", MatchID: req.MatchID}, nil
}

func (r *MatchRunner) run(req *models.StartMatchRequest) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.active, req.MatchID)
		r.mu.Unlock()
	}()

	if err := r.slots.Acquire(r.ctx, 1); err != nil {
		r.logger.Warn("match abandoned before start", slog.String("match_id", req.MatchID), slog.Any("error", err))
		return
	}
	defer r.slots.Release(1)

	if _, err := r.coordinator.RunMatch(r.ctx, req); err != nil {
		r.logger.Error("match failed", slog.String("match_id", req.MatchID), slog.Any("error", err))
	}
}

func (r *MatchRunner) track(matchID string, phase models.MatchPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[matchID]; ok {
		r.active[matchID] = phase
	}
}

// Active returns the phase of every match that has not finished yet. Matches
// waiting for a slot have an empty phase.
func (r *MatchRunner) Active() map[string]models.MatchPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.MatchPhase, len(r.active))
	for id, p := range r.active {
		out[id] = p
	}
	return out
}

// Wait blocks until every accepted match has finished.
func (r *MatchRunner) Wait() {
	r.wg.Wait()
}

func validateStartMatch(req *models.StartMatchRequest) error {
	switch {
	case req == nil, req.MatchID == "":
		return missingField("match_id")
	case req.PlayerA == "":
		return missingField("player_A_id")
	case req.PlayerB == "":
		return missingField("player_B_id")
	case req.PlayerAEndpoint == "":
		return missingField("player_A_endpoint")
	case req.PlayerBEndpoint == "":
		return missingField("player_B_endpoint")
	case req.PlayerA == req.PlayerB:
		return errors.New("a player cannot play against itself")
	}
	return nil
}


package games

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrUnknownGameType = errors.New("unknown game type")
)

// Outcome is the resolver's verdict for a match where both sides answered.
type Outcome struct {
	// Winner is empty for a draw.
	Winner  string
	Scores  map[string]int
	Details map[string]any
}

func (o Outcome) IsDraw() bool {
	return o.Winner == ""
}

// Resolver is the contract every game plugs into the match coordinator with.
type Resolver interface {
	GameType() string
	ValidChoices() []string
	ValidateChoice(choice string) error
	// Resolve decides the match for players a and b given their validated choices.
	Resolve(playerA, choiceA, playerB, choiceB string) (Outcome, error)
}

// Points is the scoring table used by resolvers and technical losses.
type Points struct {
	Win           int
	Draw          int
	Loss          int
	TechnicalLoss int
}

func DefaultPoints() Points {
	return Points{Win: 3, Draw: 1, Loss: 0, TechnicalLoss: 0}
}

// Registry maps a game type name to its resolver.
type Registry struct {
	resolvers map[string]Resolver
}

func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{resolvers: make(map[string]Resolver, len(resolvers))}
	for _, res := range resolvers {
		r.resolvers[res.GameType()] = res
	}
	return r
}

func (r *Registry) Get(gameType string) (Resolver, error) {
	res, ok := r.resolvers[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, gameType)
	}
	return res, nil
}

func (r *Registry) GameTypes() []string {
	out := make([]string, 0, len(r.resolvers))
	for gt := range r.resolvers {
		out = append(out, gt)
	}
	return out
}

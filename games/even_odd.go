package games

import (
	"fmt"
	"math/rand/v2"
)

const (
	GameTypeEvenOdd = "even_odd"

	ChoiceEven = "even"
	ChoiceOdd  = "odd"

	minDraw = 1
	maxDraw = 10
)

// EvenOdd draws a number in [1, 10]. Equal choices are a draw regardless of
// the number; otherwise whoever named the number's parity wins.
type EvenOdd struct {
	points Points
	draw   func() int
}

type EvenOddOption func(*EvenOdd)

// WithDraw replaces the random number source.
func WithDraw(draw func() int) EvenOddOption {
	return func(g *EvenOdd) { g.draw = draw }
}

func WithPoints(p Points) EvenOddOption {
	return func(g *EvenOdd) { g.points = p }
}

func NewEvenOdd(opts ...EvenOddOption) *EvenOdd {
	g := &EvenOdd{
		points: DefaultPoints(),
		draw:   func() int { return minDraw + rand.IntN(maxDraw-minDraw+1) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *EvenOdd) GameType() string {
	return GameTypeEvenOdd
}

func (g *EvenOdd) ValidChoices() []string {
	return []string{ChoiceEven, ChoiceOdd}
}

func (g *EvenOdd) ValidateChoice(choice string) error {
	if choice != ChoiceEven && choice != ChoiceOdd {
		return fmt.Errorf("%w %q: must be %q or %q", ErrInvalidChoice, choice, ChoiceEven, ChoiceOdd)
	}
	return nil
}

func Parity(n int) string {
	if n%2 == 0 {
		return ChoiceEven
	}
	return ChoiceOdd
}

func (g *EvenOdd) Resolve(playerA, choiceA, playerB, choiceB string) (Outcome, error) {
	if err := g.ValidateChoice(choiceA); err != nil {
		return Outcome{}, fmt.Errorf("player %s: %w", playerA, err)
	}
	if err := g.ValidateChoice(choiceB); err != nil {
		return Outcome{}, fmt.Errorf("player %s: %w", playerB, err)
	}

	number := g.draw()
	parity := Parity(number)
	out := Outcome{
		Scores: make(map[string]int, 2),
		Details: map[string]any{
			"drawn_number":  number,
			"number_parity": parity,
			"choices": map[string]string{
				playerA: choiceA,
				playerB: choiceB,
			},
		},
	}

	switch {
	case choiceA == choiceB:
		out.Scores[playerA] = g.points.Draw
		out.Scores[playerB] = g.points.Draw
		out.Details["reason"] = fmt.Sprintf("both chose %s", choiceA)
	case choiceA == parity:
		out.Winner = playerA
		out.Scores[playerA] = g.points.Win
		out.Scores[playerB] = g.points.Loss
		out.Details["reason"] = fmt.Sprintf("%s chose %s, number was %d (%s)", playerA, choiceA, number, parity)
	default:
		out.Winner = playerB
		out.Scores[playerA] = g.points.Loss
		out.Scores[playerB] = g.points.Win
		out.Details["reason"] = fmt.Sprintf("%s chose %s, number was %d (%s)", playerB, choiceB, number, parity)
	}

	return out, nil
}

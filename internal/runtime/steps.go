package runtime

import (
	"context"
	"iter"

	"github.com/aretw0/parley/pkg/domain"
)

// Chooser supplies the player's decision for a choice node.
// Returning nil (or any invalid index) ends the run.
type Chooser func(node *domain.Node, options []domain.ChoiceOption) any

// Steps exposes the run as a lazy sequence of suspension points.
// The sequence ends when the run terminates; breaking out of the loop leaves the
// interpreter parked, and ranging again continues from there.
func (i *Interpreter) Steps(ctx context.Context, choose Chooser) iter.Seq[domain.StepResult] {
	return func(yield func(domain.StepResult) bool) {
		var input any
		for {
			res := i.Advance(ctx, input)
			input = nil
			if res.Kind == domain.StepTerminated {
				return
			}
			if !yield(res) {
				return
			}
			if res.Kind == domain.StepAwaitingChoice && choose != nil {
				input = choose(res.Node, res.Options)
			}
		}
	}
}

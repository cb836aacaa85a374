package feature

import (
	"tessera/internal/lm"
	"tessera/internal/vocab"
)

const (
	WordPenaltyName      = "WordPenalty"
	PhrasePenaltyName    = "PhrasePenalty"
	LinearDistortionName = "LinearDistortion"
	LanguageModelName    = "LM"
)

// WordPenalty counts target words.
type WordPenalty struct{}

func (WordPenalty) Name() string { return WordPenaltyName }

func (WordPenalty) Featurize(f *Featurizable) Values {
	return Values{{Name: WordPenaltyName, Value: float64(len(f.TargetPhrase))}}
}

func (WordPenalty) IsolationFeatures(target vocab.Sequence) Values {
	return Values{{Name: WordPenaltyName, Value: float64(len(target))}}
}

// PhrasePenalty counts applied options; target-only merges are free.
type PhrasePenalty struct{}

func (PhrasePenalty) Name() string { return PhrasePenaltyName }

func (PhrasePenalty) Featurize(f *Featurizable) Values {
	if f.TargetOnly {
		return nil
	}
	return Values{{Name: PhrasePenaltyName, Value: 1}}
}

func (PhrasePenalty) IsolationFeatures(vocab.Sequence) Values {
	return Values{{Name: PhrasePenaltyName, Value: 1}}
}

// LinearDistortion charges the source jump of each applied option.
type LinearDistortion struct{}

func (LinearDistortion) Name() string { return LinearDistortionName }

func (LinearDistortion) Featurize(f *Featurizable) Values {
	if f.TargetOnly || f.LinearDistortion == 0 {
		return nil
	}
	return Values{{Name: LinearDistortionName, Value: -float64(f.LinearDistortion)}}
}

// NGram scores the growing translation with a language model. Its state is
// the model context, so it doubles as the LM recombination key.
type NGram struct {
	name  string
	model *lm.Model
}

// NewNGram names the featurizer "LM" unless name is given.
func NewNGram(model *lm.Model, name string) *NGram {
	if name == "" {
		name = LanguageModelName
	}
	return &NGram{name: name, model: model}
}

func (n *NGram) Name() string { return n.name }

// Order exposes the model order.
func (n *NGram) Order() int { return n.model.Order() }

func (n *NGram) InitialState() State { return n.model.BeginState() }

func (n *NGram) Featurize(f *Featurizable) Values {
	prior, _ := f.PriorState().(*lm.State)
	if prior == nil {
		prior = n.model.BeginState()
	}
	st := n.model.Score(f.TargetPhrase, 0, prior)
	score := st.Score()
	if f.Done {
		st = n.model.Score(vocab.Sequence{vocab.EndID}, 0, st)
		score += st.Score()
	}
	f.SetState(st)
	return Values{{Name: n.name, Value: score}}
}

func (n *NGram) IsolationFeatures(target vocab.Sequence) Values {
	return Values{{Name: n.name, Value: n.model.Score(target, 0, nil).Score()}}
}

// LanguageModel matches featurizers whose state is an LM context.
func LanguageModel(f Featurizer) bool {
	_, ok := f.(*NGram)
	return ok
}

// AnyStateful matches every stateful featurizer.
func AnyStateful(Featurizer) bool { return true }

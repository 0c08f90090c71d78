package engine

// MutationResult tells the stage whether a mutated input is worth running.
type MutationResult uint8

const (
	Mutated MutationResult = iota
	Skipped
)

func (r MutationResult) String() string {
	if r == Skipped {
		return "skipped"
	}
	return "mutated"
}

// Mutator rewrites an input in place.
type Mutator interface {
	Name() string
	Mutate(state *State, input *Input) (MutationResult, error)
	// PostExec runs after the mutated input was evaluated; id is set when
	// the input was added to the corpus.
	PostExec(state *State, id *CorpusID) error
}

// Generator produces fresh inputs.
type Generator interface {
	Generate(state *State) (Input, error)
}

// Package grammar adapts a grammar bridge to the fuzzing engine: a
// generator, a mutator that resamples from the grammar, an executor that
// records parse counts, and a stage that mutates fresh grammar seeds.
package grammar

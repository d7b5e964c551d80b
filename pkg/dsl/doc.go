/*
Package dsl builds automaton definitions in Go instead of typing the
transition text by hand.

Example usage:

	b := dsl.NFA()
	b.State("q0").Start().On("a", "q0", "q1").On("b", "q0")
	b.State("q1").On("b", "q2")
	b.State("q2").Accept().On("a", "q2").On("b", "q2")

	def, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	res, err := automata.New().Process(ctx, def, "", "aab")

States are listed in the order they are first mentioned, and so is the
alphabet unless Alphabet fixes it explicitly.
*/
package dsl

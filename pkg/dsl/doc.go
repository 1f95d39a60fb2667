/*
Package dsl provides a fluent builder for constructing dialog graphs in Go.

It is an alternative to YAML graph files, useful for graphs compiled into the
binary and for unit tests.

Example usage:

	b := dsl.New()

	b.Add("start").
		Say("Greet the user and ask what the problem is.").
		Option("temp", "Say: 'The temperature is wrong'", "ask_duration").
		Option("other", "Say: 'Something else'", "end")

	b.Add("ask_duration").
		Say("Ask how many hours the problem has lasted.").
		Capture("duration").
		Go("check_duration")

	b.Add("check_duration").Branch("duration", 1, "end", "end")

	b.Add("end").Say("Say that the diagnosis is complete.")

	g, err := b.Build()
*/
package dsl

// Package synth supplies fake merchant data for the bulk entry generator.
package synth

import "github.com/brianvoe/gofakeit/v6"

// Source draws company names from gofakeit as transaction counterparties.
type Source struct{}

func New() Source { return Source{} }

func (Source) Counterparty() string { return gofakeit.Company() }

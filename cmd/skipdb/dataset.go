package main

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"skipdb/pkg/core"
)

// Person and Ticket are the two demo tables.
type Person struct {
	RowID  uuid.UUID `json:"row_id"`
	ID     int       `json:"id"`
	Numero int       `json:"numero"`
	Name   string    `json:"name"`
	City   string    `json:"city,omitempty"`
}

type Ticket struct {
	RowID uuid.UUID `json:"row_id"`
	ID    int       `json:"id"`
	Title string    `json:"title"`
}

var (
	personRowID  = core.NewFieldFunc("row_id", func(p *Person) (uuid.UUID, bool) { return p.RowID, true }, compareUUID)
	personID     = core.NewField("id", func(p *Person) int { return p.ID })
	personNumero = core.NewField("numero", func(p *Person) int { return p.Numero })
	personName   = core.NewField("name", func(p *Person) string { return p.Name })
	personCity   = core.NewOptionalField("city", func(p *Person) (string, bool) { return p.City, p.City != "" })

	ticketID    = core.NewField("id", func(t *Ticket) int { return t.ID })
	ticketTitle = core.NewField("title", func(t *Ticket) string { return t.Title })
)

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

var (
	names  = []string{"ada", "grace", "alan", "edsger", "barbara", "donald"}
	cities = []string{"", "Oslo", "Lyon", "Kyoto"}
)

// openPeople opens the people store with its fields and indexes.
func openPeople(reg *core.Registry) (*core.Store[*Person], error) {
	s, err := core.Open[*Person](reg, "people")
	if err != nil {
		return nil, err
	}
	s.Declare(personRowID, personID, personNumero, personName, personCity)
	if err := s.RegisterIndex("row_id", true); err != nil {
		return nil, err
	}
	if err := s.RegisterIndex("id", true); err != nil {
		return nil, err
	}
	if err := s.RegisterIndex("numero", false); err != nil {
		return nil, err
	}
	return s, nil
}

func openTickets(reg *core.Registry) (*core.Store[*Ticket], error) {
	s, err := core.Open[*Ticket](reg, "tickets")
	if err != nil {
		return nil, err
	}
	s.Declare(ticketID, ticketTitle)
	if err := s.RegisterIndex("id", true); err != nil {
		return nil, err
	}
	return s, nil
}

func newPerson(i int) *Person {
	return &Person{
		RowID:  uuid.New(),
		ID:     i + 1,
		Numero: i,
		Name:   names[i%len(names)],
		City:   cities[i%len(cities)],
	}
}

// seed loads people for i in 1..n (ID i+1, Numero i) and tickets 2..5.
func seed(reg *core.Registry, n int) (*core.Store[*Person], *core.Store[*Ticket], error) {
	people, err := openPeople(reg)
	if err != nil {
		return nil, nil, err
	}
	tickets, err := openTickets(reg)
	if err != nil {
		return nil, nil, err
	}

	batch := make([]*Person, 0, n)
	for i := 1; i <= n; i++ {
		batch = append(batch, newPerson(i))
	}
	if err := people.SaveAll(batch...); err != nil {
		return nil, nil, fmt.Errorf("seed people: %w", err)
	}
	for id := 2; id <= 5; id++ {
		if err := tickets.Save(&Ticket{RowID: uuid.New(), ID: id, Title: fmt.Sprintf("ticket-%d", id)}); err != nil {
			return nil, nil, fmt.Errorf("seed tickets: %w", err)
		}
	}
	return people, tickets, nil
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PositionID names a slot on the field, e.g. "ST".
type PositionID string

// PlayerID names a roster player. The empty value means "nobody".
type PlayerID string

// Position is a slot on the field. Top and Left are percentages of the field size.
type Position struct {
	ID    PositionID `json:"id" validate:"required,max=16"`
	Label string     `json:"label" validate:"required"`
	Top   float64    `json:"top" validate:"min=0,max=100"`
	Left  float64    `json:"left" validate:"min=0,max=100"`
}

// Player is a roster entry.
type Player struct {
	Name     PlayerID `json:"name" validate:"required,max=64"`
	ImageURL string   `json:"image_url,omitempty" validate:"omitempty,url|startswith=/"`
}

// Catalog is the fixed set of positions and players a lineup is built from.
type Catalog struct {
	Positions []Position `json:"positions" validate:"required,min=1,dive"`
	Players   []Player   `json:"players" validate:"required,min=1,dive"`

	positions map[PositionID]int
	players   map[PlayerID]int
}

// NewCatalog validates the given positions and players and indexes them.
func NewCatalog(positions []Position, players []Player) (*Catalog, error) {
	c := &Catalog{
		Positions: positions,
		Players:   players,
		positions: make(map[PositionID]int, len(positions)),
		players:   make(map[PlayerID]int, len(players)),
	}

	if err := validate.Struct(c); err != nil {
		return nil, formatValidationError(err)
	}

	for i, p := range positions {
		if _, ok := c.positions[p.ID]; ok {
			return nil, fmt.Errorf("duplicate position %q", p.ID)
		}
		c.positions[p.ID] = i
	}

	for i, p := range players {
		if _, ok := c.players[p.Name]; ok {
			return nil, fmt.Errorf("duplicate player %q", p.Name)
		}
		c.players[p.Name] = i
	}

	return c, nil
}

// Position returns the catalog entry for id.
func (c *Catalog) Position(id PositionID) (Position, bool) {
	i, ok := c.positions[id]
	if !ok {
		return Position{}, false
	}
	return c.Positions[i], true
}

// Player returns the roster entry for id.
func (c *Catalog) Player(id PlayerID) (Player, bool) {
	i, ok := c.players[id]
	if !ok {
		return Player{}, false
	}
	return c.Players[i], true
}

var validate = validator.New()

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, fmt.Sprintf(
			"field '%s' failed validation: %s (value: '%v')",
			e.Namespace(),
			e.Tag(),
			e.Value(),
		))
	}

	return fmt.Errorf("invalid catalog:\n  %s", strings.Join(messages, "\n  "))
}

// DefaultCatalog returns the built-in formation and club roster.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultPositions(), defaultPlayers())
	if err != nil {
		panic("lineup: invalid default catalog: " + err.Error())
	}
	return c
}

func defaultPositions() []Position {
	return []Position{
		{ID: "GL", Label: "GL", Top: 85, Left: 50},
		{ID: "RWB", Label: "RWB", Top: 70, Left: 10},
		{ID: "LB", Label: "LB", Top: 75, Left: 35},
		{ID: "RB", Label: "RB", Top: 75, Left: 65},
		{ID: "LWB", Label: "LWB", Top: 70, Left: 90},
		{ID: "CDM", Label: "CDM", Top: 50, Left: 35},
		{ID: "CDM2", Label: "CDM2", Top: 50, Left: 66},
		{ID: "CM", Label: "CM", Top: 35, Left: 50},
		{ID: "ST", Label: "ST", Top: 15, Left: 50},
		{ID: "RW", Label: "RW", Top: 20, Left: 10},
		{ID: "LW", Label: "LW", Top: 20, Left: 90},
	}
}

func defaultPlayers() []Player {
	return []Player{
		{Name: "Keiller", ImageURL: "https://media.vasco.com.br/static/2022/03/Keiller.png"},
		{Name: "Léo Jardim", ImageURL: "https://media.vasco.com.br/static/2023/04/Leo-J.png"},
		{Name: "Léo Pelé"},
		{Name: "Paulo Henrique"},
		{Name: "José Luis Rodríguez"},
		{Name: "Robert Rojas"},
		{Name: "Victor Luis"},
		{Name: "Lucas Piton"},
		{Name: "Leandrinho"},
		{Name: "Lyncon"},
		{Name: "João Victor"},
		{Name: "Victor Victão"},
		{Name: "Luiz Gustavo"},
		{Name: "Luis Martinez"},
		{Name: "Maicon"},
		{Name: "Mateus Cocão"},
		{Name: "Hugo Moura"},
		{Name: "Jair"},
		{Name: "Matheus Jerônimo"},
		{Name: "JP"},
		{Name: "Gabriel Sá"},
		{Name: "Vegetti"},
		{Name: "Lucas Eduardo"},
		{Name: "Maxime Dominguez"},
		{Name: "Pablo Galdames"},
		{Name: "Lukas Zuccarello"},
		{Name: "Paulinho"},
		{Name: "Juan Sforza"},
		{Name: "Igor"},
		{Name: "Emerson Rodríguez"},
		{Name: "Rayan Vitor"},
		{Name: "David"},
		{Name: "Jean Meneses"},
		{Name: "Philippe Coutinho"},
		{Name: "Guilherme Estrella"},
		{Name: "Adson"},
		{Name: "João Pedro Murilo de Paula"},
		{Name: "Payet"},
		{Name: "Alex Teixeira"},
		{Name: "Rossi"},
		{Name: "Max Alegria"},
	}
}

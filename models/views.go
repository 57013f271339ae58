package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CollectionSummary is the list projection of a Collection: no poll or
// comment references.
type CollectionSummary struct {
	ID           primitive.ObjectID `json:"id" bson:"_id"`
	Name         string             `json:"name" bson:"name"`
	Description  string             `json:"description" bson:"description"`
	ColorA       string             `json:"colorA" bson:"colorA"`
	ColorB       string             `json:"colorB" bson:"colorB"`
	CreationDate time.Time          `json:"creationDate" bson:"creationDate"`
}

type CollectionDetail struct {
	CollectionSummary `bson:",inline"`
	Polls             []PollSummary `json:"polls" bson:"polls"`
}

// PollSummary is a Poll without its choices and vote timing.
type PollSummary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Name   string             `json:"name" bson:"name"`
	ColorA string             `json:"colorA" bson:"colorA"`
	ColorB string             `json:"colorB" bson:"colorB"`
}

type PollDetail struct {
	PollSummary `bson:",inline"`
	Choices     []ChoiceView `json:"choices" bson:"choices"`
	CanVote     bool         `json:"canVote" bson:"canVote"`
}

// ChoiceView replaces the raw vote records with their count.
type ChoiceView struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	VoteCount int                `json:"voteCount" bson:"voteCount"`
}

func (c *Collection) Summary() CollectionSummary {
	return CollectionSummary{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		ColorA:       c.ColorA,
		ColorB:       c.ColorB,
		CreationDate: c.CreationDate,
	}
}

func (p *Poll) Summary() PollSummary {
	return PollSummary{
		ID:     p.ID,
		Name:   p.Name,
		ColorA: p.ColorA,
		ColorB: p.ColorB,
	}
}

func (c *Choice) View() ChoiceView {
	return ChoiceView{
		ID:        c.ID,
		Name:      c.Name,
		VoteCount: len(c.Votes),
	}
}

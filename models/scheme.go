package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserLevel string

const (
	LevelUser  UserLevel = "user"
	LevelAdmin UserLevel = "admin"
)

type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DisplayName  string             `json:"displayName" bson:"displayName"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password"`
	UserLevel    UserLevel          `json:"userLevel" bson:"userLevel"`
	CreationDate time.Time          `json:"creationDate" bson:"creationDate"`
}

func (u *User) IsAdmin() bool {
	return u.UserLevel == LevelAdmin
}

type Collection struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name         string               `json:"name" bson:"name"`
	Description  string               `json:"description" bson:"description"`
	ColorA       string               `json:"colorA" bson:"colorA"`
	ColorB       string               `json:"colorB" bson:"colorB"`
	Polls        []primitive.ObjectID `json:"polls" bson:"polls"`
	Comments     []primitive.ObjectID `json:"comments" bson:"comments"`
	CreationDate time.Time            `json:"creationDate" bson:"creationDate"`
}

type Poll struct {
	ID      primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name    string               `json:"name" bson:"name"`
	ColorA  string               `json:"colorA" bson:"colorA"`
	ColorB  string               `json:"colorB" bson:"colorB"`
	Choices []primitive.ObjectID `json:"choices" bson:"choices"`
	// LastVote maps a user id (hex) to the time of that user's last
	// accepted vote on this poll.
	LastVote map[string]time.Time `json:"-" bson:"lastVote"`
}

type Choice struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Votes []Vote             `json:"-" bson:"votes"`
}

type Vote struct {
	UserID primitive.ObjectID `json:"-" bson:"userId"`
	CastAt time.Time          `json:"-" bson:"castAt"`
}

// VoteEvent is published after a vote has been recorded.
type VoteEvent struct {
	PollID   primitive.ObjectID `json:"pollId"`
	ChoiceID primitive.ObjectID `json:"choiceId"`
}

package gql

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graph-gophers/graphql-go"
	"github.com/troydota/api.collections.komodohype.dev/access"
	"github.com/troydota/api.collections.komodohype.dev/auth"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/memory"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"github.com/troydota/api.collections.komodohype.dev/server/gql/resolvers"
	"github.com/troydota/api.collections.komodohype.dev/users"
	"github.com/troydota/api.collections.komodohype.dev/voting"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	app        *fiber.App
	svc        *api.Services
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	ctx := context.Background()
	store := memory.NewStore()
	broker := memory.NewBroker()
	creds := auth.New(auth.Config{Secret: []byte("test"), BcryptCost: bcrypt.MinCost})
	engine := voting.NewEngine(store, broker, 0)
	svc := &api.Services{
		Users:   users.NewService(store, creds),
		Access:  access.NewPolicy(creds, store),
		Content: content.NewService(store, engine),
		Voting:  engine,
		Events:  broker,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	GQL(app, svc)

	if err := svc.Users.EnsureAdmin(ctx, "Admin", "admin@example.com", "adminpass"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := svc.Users.Register(ctx, "Alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	adminToken, _, err := svc.Users.Login(ctx, "admin@example.com", "adminpass")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	userToken, _, err := svc.Users.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return &testEnv{app: app, svc: svc, adminToken: adminToken, userToken: userToken}
}

type gqlResult struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *testEnv) exec(t *testing.T, token, query string, variables map[string]interface{}) (int, gqlResult) {
	body, err := json.Marshal(GQLRequest{Query: query, Variables: variables})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/gql", strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer res.Body.Close()

	out := gqlResult{}
	b, _ := io.ReadAll(res.Body)
	if err = json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unexpected body %s: %v", b, err)
	}
	return res.StatusCode, out
}

const createMutation = `mutation($c: NewCollection!) { createCollection(collection: $c) }`

func colors() map[string]interface{} {
	return map[string]interface{}{
		"c": map[string]interface{}{
			"name":        "Colors",
			"description": "All about colors",
			"polls": []interface{}{
				map[string]interface{}{"name": "Best color", "choices": []interface{}{"Red", "Blue"}},
			},
		},
	}
}

func (e *testEnv) createColors(t *testing.T) (collectionID, pollID string) {
	code, res := e.exec(t, e.adminToken, createMutation, colors())
	if code != 200 || len(res.Errors) != 0 {
		t.Fatalf("Expected the collection to be created, got: %d %+v", code, res.Errors)
	}
	collectionID = res.Data["createCollection"].(string)

	_, res = e.exec(t, "", `query($id: String!) { collection(id: $id) { polls { id } } }`, map[string]interface{}{"id": collectionID})
	polls := res.Data["collection"].(map[string]interface{})["polls"].([]interface{})
	pollID = polls[0].(map[string]interface{})["id"].(string)
	return collectionID, pollID
}

func TestCreateCollectionAuthorization(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"anonymous", "", "not authenticated"},
		{"user", e.userToken, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := e.exec(t, tt.token, createMutation, colors())
			if code != 400 || len(res.Errors) != 1 || res.Errors[0].Message != tt.want {
				t.Errorf("Expected a %q error, got: %d %+v", tt.want, code, res.Errors)
			}
		})
	}

	e.createColors(t)
}

func TestQueriesAndVote(t *testing.T) {
	e := newTestEnv(t)
	collectionID, pollID := e.createColors(t)

	_, res := e.exec(t, "", `{ collections(limit: 5) { id name } }`, nil)
	list := res.Data["collections"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["id"] != collectionID {
		t.Fatalf("Expected the created collection, got: %+v", res)
	}

	_, res = e.exec(t, "", `{ collection(id: "5f0000000000000000000000") { id } }`, nil)
	if res.Data["collection"] != nil {
		t.Errorf("Expected null for an unknown collection, got: %+v", res.Data)
	}

	pollQuery := `query($id: String!) { poll(id: $id) { name canVote choices { id name voteCount } } }`
	vars := map[string]interface{}{"id": pollID}

	if code, res := e.exec(t, "", pollQuery, vars); code != 400 || len(res.Errors) == 0 {
		t.Errorf("Expected anonymous poll reads to fail, got: %d %+v", code, res)
	}

	_, res = e.exec(t, e.userToken, pollQuery, vars)
	poll := res.Data["poll"].(map[string]interface{})
	choices := poll["choices"].([]interface{})
	if poll["canVote"] != true || len(choices) != 2 {
		t.Fatalf("Expected a votable poll with two choices, got: %+v", poll)
	}
	red := choices[0].(map[string]interface{})["id"].(string)

	voteMutation := `mutation($p: String!, $c: String!) { vote(pollId: $p, choiceId: $c) }`
	voteVars := map[string]interface{}{"p": pollID, "c": red}

	if _, res = e.exec(t, e.userToken, voteMutation, voteVars); res.Data["vote"] != "SUCCESS" {
		t.Fatalf("Expected SUCCESS, got: %+v", res)
	}
	if _, res = e.exec(t, e.userToken, voteMutation, voteVars); res.Data["vote"] != "NOT_ELIGIBLE" {
		t.Errorf("Expected NOT_ELIGIBLE, got: %+v", res)
	}

	_, res = e.exec(t, e.userToken, pollQuery, vars)
	poll = res.Data["poll"].(map[string]interface{})
	choices = poll["choices"].([]interface{})
	if poll["canVote"] != false || choices[0].(map[string]interface{})["voteCount"] != float64(1) {
		t.Errorf("Expected one recorded vote, got: %+v", poll)
	}

	rawVotes := `query($id: String!) { poll(id: $id) { choices { votes } } }`
	if code, res := e.exec(t, e.userToken, rawVotes, vars); code != 400 || len(res.Errors) == 0 || res.Data["poll"] != nil {
		t.Errorf("Expected selecting raw votes to fail validation, got: %d %+v", code, res)
	}
}

func TestWatch(t *testing.T) {
	e := newTestEnv(t)
	_, pollID := e.createColors(t)

	schema := Schema(e.svc)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), resolvers.AuthorizationKey, e.userToken))
	defer cancel()

	stream, err := schema.Subscribe(ctx, `subscription($id: String!) { watch(pollId: $id) { pollId choiceId } }`, "", map[string]interface{}{"id": pollID})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	user, err := e.svc.Access.RequireAuthenticated(e.userToken)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	pid, _ := primitive.ObjectIDFromHex(pollID)
	pd, err := e.svc.Content.GetPollDetail(context.Background(), pid, user)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err = e.svc.Voting.CastVote(context.Background(), pid, pd.Choices[1].ID, user); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case v := <-stream:
		res := v.(*graphql.Response)
		if len(res.Errors) != 0 {
			t.Fatalf("Unexpected errors: %+v", res.Errors)
		}
		out := struct {
			Watch struct {
				PollID   string `json:"pollId"`
				ChoiceID string `json:"choiceId"`
			} `json:"watch"`
		}{}
		if err = json.Unmarshal(res.Data, &out); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out.Watch.PollID != pollID || out.Watch.ChoiceID != pd.Choices[1].ID.Hex() {
			t.Errorf("Expected the vote for Blue, got: %+v", out.Watch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the vote event")
	}
}

package rest

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/troydota/api.collections.komodohype.dev/content"
	"github.com/troydota/api.collections.komodohype.dev/errs"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const localUser = "user"

type signupRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type voteRequest struct {
	ChoiceID string `json:"choiceId"`
}

// Routes registers the REST surface on app.
func Routes(app fiber.Router, s *api.Services) {
	h := &handlers{s}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": 200, "message": "OK"})
	})

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", h.signup)
	authGroup.Post("/login", h.login)

	collections := app.Group("/collections")
	collections.Get("/", h.listCollections)
	collections.Get("/:id", h.getCollection)
	collections.Post("/", h.authenticated, h.admin, h.createCollection)

	polls := app.Group("/polls")
	polls.Get("/:id", h.authenticated, h.getPoll)
	polls.Post("/:id/vote", h.authenticated, h.vote)
}

type handlers struct {
	*api.Services
}

func (h *handlers) authenticated(c *fiber.Ctx) error {
	id, err := h.Access.RequireAuthenticated(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	c.Locals(localUser, id)
	return c.Next()
}

func (h *handlers) admin(c *fiber.Ctx) error {
	if err := h.Access.RequireAdmin(c.UserContext(), currentUser(c)); err != nil {
		return err
	}
	return c.Next()
}

func currentUser(c *fiber.Ctx) primitive.ObjectID {
	id, _ := c.Locals(localUser).(primitive.ObjectID)
	return id
}

func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return errs.Invalid("body", "expected a json object")
	}
	return nil
}

// pathID parses the :id route parameter. Ids that can't exist are reported
// as not found.
func pathID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return primitive.NilObjectID, errs.ErrNotFound
	}
	return id, nil
}

func (h *handlers) signup(c *fiber.Ctx) error {
	req := &signupRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}

	id, err := h.Users.Register(c.UserContext(), req.DisplayName, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"userId": id.Hex()})
}

func (h *handlers) login(c *fiber.Ctx) error {
	req := &loginRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}

	token, id, err := h.Users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token, "userId": id.Hex()})
}

func (h *handlers) listCollections(c *fiber.Ctx) error {
	limit := 0
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return errs.Invalid("limit", "must be a number")
		}
		limit = n
	}

	list, err := h.Content.ListCollections(c.UserContext(), limit)
	if err != nil {
		return err
	}

	return c.JSON(list)
}

func (h *handlers) getCollection(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	detail, err := h.Content.GetCollectionDetail(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(detail)
}

func (h *handlers) createCollection(c *fiber.Ctx) error {
	req := content.NewCollection{}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	id, err := h.Content.CreateCollection(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id.Hex()})
}

func (h *handlers) getPoll(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	detail, err := h.Content.GetPollDetail(c.UserContext(), id, currentUser(c))
	if err != nil {
		return err
	}

	return c.JSON(detail)
}

func (h *handlers) vote(c *fiber.Ctx) error {
	pollID, err := pathID(c)
	if err != nil {
		return err
	}

	req := &voteRequest{}
	if err = parseBody(c, req); err != nil {
		return err
	}
	if req.ChoiceID == "" {
		return errs.Invalid("choiceId", "is required")
	}
	choiceID, err := primitive.ObjectIDFromHex(req.ChoiceID)
	if err != nil {
		return errs.ErrNotFound
	}

	if err = h.Voting.CastVote(c.UserContext(), pollID, choiceID, currentUser(c)); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"status": "SUCCESS"})
}

package gql

import (
	"context"
	"sync"
	"time"

	"github.com/gobuffalo/packr/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/graph-gophers/graphql-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"github.com/troydota/api.collections.komodohype.dev/server/gql/resolvers"
	"github.com/troydota/api.collections.komodohype.dev/utils"

	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const heartbeatInterval = 60 * time.Second

type GQLRequest struct {
	Query          string                 `json:"query"`
	Variables      map[string]interface{} `json:"variables"`
	OperationName  string                 `json:"operation_name"`
	RequestID      string                 `json:"request_id"`
	SubscriptionID string                 `json:"subscription_id"`
	Authorization  string                 `json:"authorization"`
}

type WSResponse struct {
	Payload        interface{} `json:"payload,omitempty"`
	Error          string      `json:"error,omitempty"`
	RequestID      string      `json:"request_id,omitempty"`
	SubscriptionID string      `json:"sub_id,omitempty"`
}

func Schema(svc *api.Services) *graphql.Schema {
	box := packr.New("gql", "./schema")

	s, err := box.FindString("schema.gql")
	if err != nil {
		panic(err)
	}

	return graphql.MustParseSchema(s, resolvers.New(svc), graphql.UseFieldResolvers())
}

func requestContext(parent context.Context, ip interface{}, authorization string) context.Context {
	ctx := context.WithValue(parent, utils.Key("ip"), ip)
	return context.WithValue(ctx, resolvers.AuthorizationKey, authorization)
}

func GQL(app fiber.Router, svc *api.Services) {
	gql := app.Group("/gql")

	schema := Schema(svc)

	gql.Use(func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return c.Next()
		}
		// IsWebSocketUpgrade returns true if the client
		// requested upgrade to the WebSocket protocol.
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("ip", c.IP())
			c.Locals("authorization", c.Get(fiber.HeaderAuthorization))
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	gql.Post("/", func(c *fiber.Ctx) error {
		req := &GQLRequest{}
		if err := c.BodyParser(req); err != nil {
			log.Errorf("gql req, err=%v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  fiber.StatusBadRequest,
				"message": "Invalid GraphQL Request.",
			})
		}

		ctx := requestContext(c.UserContext(), c.IP(), c.Get(fiber.HeaderAuthorization))
		result := schema.Exec(ctx, req.Query, req.OperationName, req.Variables)

		status := fiber.StatusOK
		if len(result.Errors) > 0 {
			status = fiber.StatusBadRequest
		}

		return c.Status(status).JSON(result)
	})

	gql.Get("/", websocket.New(func(c *websocket.Conn) {
		closeChan := make(chan struct{})
		mtx := &sync.Mutex{}
		events := map[string]chan struct{}{}

		write := func(v WSResponse) error {
			data, err := json.Marshal(v)
			if err != nil {
				log.Errorf("json, err=%v", err)
				return nil
			}
			mtx.Lock()
			defer mtx.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		go func() {
			ticker := time.NewTicker(heartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mtx.Lock()
					err := c.WriteMessage(websocket.TextMessage, utils.S2B("HEARTBEAT"))
					mtx.Unlock()
					if err != nil {
						return
					}
				case <-closeChan:
					return
				}
			}
		}()
		defer close(closeChan)

		ip := c.Locals("ip")
		authorization, _ := c.Locals("authorization").(string)

		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			if mt != websocket.TextMessage {
				continue
			}

			req := &GQLRequest{}
			if err = json.Unmarshal(msg, req); err != nil {
				if err = write(WSResponse{Error: "invalid request"}); err != nil {
					break
				}
				continue
			}

			if req.SubscriptionID != "" && req.OperationName == "unsubscribe" {
				mtx.Lock()
				if v, ok := events[req.SubscriptionID]; ok {
					close(v)
					delete(events, req.SubscriptionID)
				}
				mtx.Unlock()
				continue
			}

			if req.Authorization == "" {
				req.Authorization = authorization
			}

			go func(req *GQLRequest) {
				queryCtx, cancel := context.WithCancel(requestContext(context.Background(), ip, req.Authorization))
				defer cancel()

				result, err := schema.Subscribe(queryCtx, req.Query, req.OperationName, req.Variables)
				if err != nil {
					log.Errorf("gql, err=%v", err)
					_ = write(WSResponse{Error: "invalid request", RequestID: req.RequestID})
					return
				}

				id, err := utils.GenerateRandomString(20)
				if err != nil {
					log.Errorf("random, err=%v", err)
					_ = write(WSResponse{Error: "internal server err", RequestID: req.RequestID})
					return
				}

				unsub := make(chan struct{})
				mtx.Lock()
				events[id] = unsub
				mtx.Unlock()
				ended := make(chan struct{})
				defer close(ended)
				defer func() {
					mtx.Lock()
					delete(events, id)
					mtx.Unlock()
				}()
				go func() {
					select {
					case <-closeChan:
					case <-ended:
					case <-unsub:
					}
					cancel()
				}()

				for val := range result {
					if err := write(WSResponse{
						Payload:        val,
						RequestID:      req.RequestID,
						SubscriptionID: id,
					}); err != nil {
						return
					}
				}
			}(req)
		}
	}))
}

package server

import (
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/troydota/api.collections.komodohype.dev/server/api"
	"github.com/troydota/api.collections.komodohype.dev/server/gql"
	"github.com/troydota/api.collections.komodohype.dev/server/rest"
	"github.com/troydota/api.collections.komodohype.dev/utils"

	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	app *fiber.App
	ln  net.Listener
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

// NewApp builds the HTTP application serving both the REST and the GraphQL
// surface.
func NewApp(svc *api.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          api.ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		Output: &customLogger{},
	}))

	rest.Routes(app, svc)
	gql.GQL(app, svc)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(&fiber.Map{
			"status":  fiber.StatusNotFound,
			"message": "We don't know what you're looking for.",
		})
	})

	return app
}

// NewServer starts serving svc on the given listener address.
func NewServer(network, address string, svc *api.Services) (*Server, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}

	server := &Server{
		ln:  ln,
		app: NewApp(svc),
	}

	go func() {
		if err := server.app.Listener(server.ln); err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server, nil
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

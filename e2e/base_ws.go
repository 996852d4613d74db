package e2e

import (
	"encoding/json"
	"fmt"
	"group-chat/auth"
	"group-chat/domain"
	"group-chat/domain/event"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const readTimeout = 5 * time.Second

type BaseWsSuite struct {
	suite.Suite
	Config Config
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration; without a gateway address the suite is skipped.
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GatewayURL == "" || s.Config.JwtSecret == "" {
		s.T().Skip("E2E_GATEWAY_URL and JWT_SECRET are required for end-to-end tests")
	}
	s.tokens = auth.NewTokenManager(s.Config.JwtSecret, time.Hour)
}

// Frame is a server event with its payload left raw.
type Frame struct {
	Event   event.Name      `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one authenticated connection to the gateway.
type Client struct {
	s    *BaseWsSuite
	name string
	ws   *websocket.Conn
}

// Dial connects as userID, printing a colorized header for the step in logs.
func (s *BaseWsSuite) Dial(name string, userID domain.UserID) *Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	token, err := s.tokens.GenerateToken(userID, "")
	s.Require().NoError(err)
	ws, _, err := websocket.DefaultDialer.Dial(s.Config.GatewayURL, http.Header{"Authorization": []string{"Bearer " + token}})
	s.Require().NoError(err, "Failed to connect to gateway at "+s.Config.GatewayURL)
	s.T().Cleanup(func() { _ = ws.Close() })
	return &Client{s: s, name: name, ws: ws}
}

func (c *Client) Call(method domain.Method, params any) {
	raw, err := json.Marshal(params)
	c.s.Require().NoError(err)
	request := domain.Request{ID: uuid.NewString(), Method: method, Params: raw}
	if c.s.Config.DebugJSON {
		c.s.T().Logf("%s >>> %s %s", c.name, method, raw)
	}
	c.s.Require().NoError(c.ws.WriteJSON(request))
}

// Await reads frames until one of the wanted event shows up; frames of other kinds are skipped.
func (c *Client) Await(name event.Name, payload any) {
	deadline := time.Now().Add(readTimeout)
	for {
		c.s.Require().NoError(c.ws.SetReadDeadline(deadline))
		var frame Frame
		c.s.Require().NoError(c.ws.ReadJSON(&frame), "%s never received %s", c.name, name)
		if c.s.Config.DebugJSON {
			c.s.T().Logf("%s <<< %s %s", c.name, frame.Event, frame.Payload)
		}
		if frame.Event == name {
			c.s.Require().NoError(json.Unmarshal(frame.Payload, payload))
			return
		}
	}
}

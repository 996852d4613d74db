package main

import (
	"encoding/json"
	"group-chat/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		method domain.Method
		params string
	}{
		{"Create private", "/create Team", domain.CreateGroupMethod, `{"name":"Team","description":"","isPrivate":true}`},
		{"Create public", "/create Lobby public", domain.CreateGroupMethod, `{"name":"Lobby","description":"","isPrivate":false}`},
		{"Join", "/join g1", domain.JoinGroupMethod, `{"groupId":"g1"}`},
		{"Send keeps spaces", "/send g1 hello  world", domain.SendMessageToGroupMethod, `{"groupId":"g1","text":"hello  world"}`},
		{"Invite", "/invite g1 bob", domain.InviteToGroupMethod, `{"groupId":"g1","userId":"bob"}`},
		{"History with cursor", "/history g1 abc", domain.HistoryMethod, `{"groupId":"g1","cursor":"abc"}`},
		{"Search", "/search g1 release notes", domain.SearchMessagesMethod, `{"groupId":"g1","terms":"release notes","limit":0}`},
		{"Broadcast", "/broadcast hi all", domain.BroadcastToAllMethod, `{"text":"hi all"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			request, err := parse(tt.line)

			req.NoError(err)
			req.Equal(tt.method, request.Method)
			req.NotEmpty(request.ID)
			req.JSONEq(tt.params, string(request.Params))
		})
	}
}

func TestParse_Raw_Json(t *testing.T) {
	req := require.New(t)

	request, err := parse(`{"id":"7","method":"JoinGroup","params":{"groupId":"g1"}}`)

	req.NoError(err)
	req.Equal("7", request.ID)
	req.Equal(domain.JoinGroupMethod, request.Method)
	req.JSONEq(`{"groupId":"g1"}`, string(request.Params))
}

func TestParse_Errors(t *testing.T) {
	for _, line := range []string{"/create", "/join", "/send g1", "/invite g1", "/history", "/search g1", "/broadcast", "/unknown", `{not json`} {
		t.Run(line, func(t *testing.T) {
			_, err := parse(line)
			require.Error(t, err)
		})
	}
}

func TestRender(t *testing.T) {
	req := require.New(t)
	payload, err := json.Marshal("Alice created the group Team")
	req.NoError(err)

	req.Contains(render("BroadCast", payload), "Alice created the group Team")
	req.Contains(render("Unknown", json.RawMessage(`{}`)), "Unknown {}")
}

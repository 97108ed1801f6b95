package scenario

import (
	"net/http"
	"strconv"

	"github.com/funnyzak/botfake/internal/fixtures"
)

// Built-in scenario names.
const (
	SingleGetMe               = "Single getMe"
	GetMeErrorHandling        = "getMe error handling"
	GetUpdatesAndSendMessages = "Single getUpdates and send messages"
	HandleGetUpdatesOffset    = "Handle getUpdates offset"
)

const testChatID int64 = 104519755

func builtins() map[string][]Step {
	return map[string][]Step{
		SingleGetMe: {
			{
				Description: "Client sends getMe request",
				Expect:      expectRequest(http.MethodGet, "/bot123/getMe"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.GetMe},
			},
		},
		GetMeErrorHandling: {
			{
				Description: "Client sends getMe request and receives Internal Server error",
				Expect:      expectRequest(http.MethodGet, "/bot123/getMe"),
				Response:    Response{Status: http.StatusInternalServerError, Body: "Internal server error"},
			},
			{
				Description: "Client sends getMe request and receives error json",
				Expect:      expectRequest(http.MethodGet, "/bot123/getMe"),
				Response:    Response{Status: http.StatusUnauthorized, Fixture: fixtures.GetMeError},
			},
		},
		GetUpdatesAndSendMessages: {
			{
				Description: "Client sends getUpdates request",
				Expect:      expectRequest(http.MethodGet, "/bot123/getUpdates"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.GetUpdatesFourMessages},
				Capture:     map[string]string{"reply_to": "$.result[1].message.message_id"},
			},
			{
				Description: `Client sends message "Hi!"`,
				Expect:      expectSendMessage("message #1", "Hi!", ""),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.SendMessageHi},
			},
			{
				Description: `Client sends reply "Reply"`,
				Expect:      expectSendMessage("reply message", "Reply", "${reply_to}"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.SendMessageReply},
			},
			{
				Description: `Client sends reply "Reply"`,
				Expect:      expectSendMessage("reply message", "Reply", "${reply_to}"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.SendMessageReply},
			},
		},
		HandleGetUpdatesOffset: {
			{
				Description: "Client sends request and receives 2 messages",
				Expect:      expectRequest(http.MethodGet, "/bot123/getUpdates?timeout=5"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.GetUpdatesTwoMessages},
				Capture:     map[string]string{"offset": "$.result[-1].update_id"},
			},
			{
				Description: "Client sends request with correct offset and receives 0 messages",
				Expect:      expectRequest(http.MethodGet, "/bot123/getUpdates?offset=${offset}&timeout=5"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.GetUpdatesZeroMessages},
			},
			{
				Description: "Client sends request with current offset and receives 1 message",
				Expect:      expectRequest(http.MethodGet, "/bot123/getUpdates?offset=${offset}&timeout=5"),
				Response:    Response{Status: http.StatusOK, Fixture: fixtures.GetUpdatesOneMessage},
			},
		},
	}
}

func expectRequest(method, uri string) func(*Call) error {
	return func(c *Call) error {
		if err := c.ExpectURI(uri); err != nil {
			return err
		}
		return c.ExpectMethod(method)
	}
}

// expectSendMessage checks a sendMessage call to the test chat. An empty
// replyTo means the reply id is not checked.
func expectSendMessage(label, text, replyTo string) func(*Call) error {
	return func(c *Call) error {
		if err := expectRequest(http.MethodPost, "/bot123/sendMessage")(c); err != nil {
			return err
		}
		if err := c.ExpectHeader("Content-Type", contentTypeJSON); err != nil {
			return err
		}

		msg, err := c.SendMessage()
		if err != nil {
			return err
		}
		if msg.Text != text {
			return c.Failf("Invalid text in %s: expected %q, got %q", label, text, msg.Text)
		}
		if msg.ChatID != testChatID {
			return c.Failf("Invalid chat_id in %s: expected %d, got %d", label, testChatID, msg.ChatID)
		}
		if replyTo == "" {
			return nil
		}

		want := c.Expand(replyTo)
		got := "(none)"
		if msg.ReplyToMessageID != nil {
			got = strconv.FormatInt(*msg.ReplyToMessageID, 10)
		}
		if got != want {
			return c.Failf("reply_to_message_id field is incorrect: expected %s, got %s", want, got)
		}
		return nil
	}
}

package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const sendMessageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["chat_id", "text"],
  "properties": {
    "chat_id": {"type": "integer"},
    "text": {"type": "string"},
    "reply_to_message_id": {"type": "integer"}
  }
}`

var sendMessageValidator = jsonschema.MustCompileString("sendMessage.json", sendMessageSchema)

// SendMessage is the subset of the sendMessage payload the scenarios check.
type SendMessage struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID *int64 `json:"reply_to_message_id,omitempty"`
}

// SendMessage decodes the request body as a sendMessage payload. A body
// that is not JSON or does not have the payload's shape is malformed.
func (c *Call) SendMessage() (*SendMessage, error) {
	doc, err := c.JSON()
	if err != nil {
		return nil, err
	}
	if err := sendMessageValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: sendMessage: %v", ErrMalformedBody, err)
	}

	var msg SendMessage
	if err := json.Unmarshal(c.body, &msg); err != nil {
		return nil, fmt.Errorf("%w: sendMessage: %v", ErrMalformedBody, err)
	}
	return &msg, nil
}

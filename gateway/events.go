package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studyhall/domain"
	"studyhall/domain/event"
	"studyhall/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// inbound is the envelope a browser client sends. All commands share one
// shape; which fields matter depends on Type.
type inbound struct {
	Type     string  `json:"type" validate:"required"`
	Identity string  `json:"identity" validate:"omitempty,max=64"`
	Author   string  `json:"author" validate:"omitempty,max=64"`
	Text     string  `json:"text"`
	Image    *string `json:"image"`
	ReplyTo  *string `json:"replyTo" validate:"omitempty,uuid"`
	ID       string  `json:"id" validate:"omitempty,uuid"`
	Emoji    string  `json:"emoji" validate:"omitempty,max=16"`
	User     string  `json:"user" validate:"omitempty,max=64"`
}

// outbound wraps a domain event for the wire. The payload keeps the
// event's own JSON shape so browser clients stay decoupled from Go types.
type outbound struct {
	Type    string            `json:"type"`
	Payload event.DomainEvent `json:"payload"`
}

func encodeEvent(e event.DomainEvent) ([]byte, error) {
	return json.Marshal(outbound{Type: e.EventName(), Payload: e})
}

// Limits bounds what a single client may push through the gateway.
type Limits struct {
	MaxTextRunes      int
	MaxAttachmentSize int
}

// decodeCommand turns one raw websocket frame into a domain command,
// applying the gateway-side checks the room itself does not repeat.
func decodeCommand(raw []byte, connectionID string, limits Limits) (domain.Command, error) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	switch in.Type {
	case "join":
		if in.Identity == "" {
			return nil, fmt.Errorf("%w: join requires an identity", errors.ErrInvalidInput)
		}
		return domain.JoinCommand{ConnectionID: connectionID, Identity: in.Identity}, nil

	case "sendMessage":
		if in.Author == "" {
			return nil, fmt.Errorf("%w: message requires an author", errors.ErrInvalidInput)
		}
		if len([]rune(in.Text)) > limits.MaxTextRunes {
			return nil, fmt.Errorf("%w: text exceeds %d characters", errors.ErrInvalidInput, limits.MaxTextRunes)
		}
		if strings.TrimSpace(in.Text) == "" && in.Image == nil {
			return nil, fmt.Errorf("%w: message needs text or an image", errors.ErrInvalidInput)
		}
		if in.Image != nil {
			if err := checkAttachment(*in.Image, limits.MaxAttachmentSize); err != nil {
				return nil, err
			}
		}
		cmd := domain.SendMessageCommand{
			Author:     in.Author,
			Body:       in.Text,
			Attachment: in.Image,
			CreatedAt:  time.Now(),
		}
		if in.ReplyTo != nil {
			id, err := uuid.Parse(*in.ReplyTo)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
			}
			cmd.ReplyTo = &id
		}
		return cmd, nil

	case "reactToMessage":
		id, err := uuid.Parse(in.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
		}
		if in.Emoji == "" || in.User == "" {
			return nil, fmt.Errorf("%w: reaction requires emoji and user", errors.ErrInvalidInput)
		}
		return domain.ReactCommand{MessageID: id, Symbol: in.Emoji, Participant: in.User}, nil

	case "deleteMessage":
		id, err := uuid.Parse(in.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
		}
		return domain.DeleteCommand{MessageID: id}, nil

	default:
		return nil, fmt.Errorf("%w: unknown command %q", errors.ErrInvalidInput, in.Type)
	}
}

// checkAttachment accepts only base64 data URLs that decode to a real
// image. Detection sniffs the decoded bytes, never the declared header.
func checkAttachment(dataURL string, maxSize int) error {
	if len(dataURL) > maxSize {
		return fmt.Errorf("%w: attachment exceeds %d bytes", errors.ErrInvalidInput, maxSize)
	}
	if !strings.HasPrefix(dataURL, "data:") {
		return fmt.Errorf("%w: attachment must be a data URL", errors.ErrInvalidInput)
	}
	_, encoded, found := strings.Cut(dataURL, ";base64,")
	if !found {
		return fmt.Errorf("%w: attachment must be base64 encoded", errors.ErrInvalidInput)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	detected := mimetype.Detect(decoded)
	if !strings.HasPrefix(detected.String(), "image/") {
		return fmt.Errorf("%w: attachment is %s, not an image", errors.ErrInvalidInput, detected.String())
	}
	return nil
}

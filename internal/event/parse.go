package event

import (
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
)

// Callback payloads kept wire-compatible with the previous generation of the
// bot, so decision buttons on already-posted review messages keep working.
const (
	callbackCancel   = "cancel"
	callbackAddPhoto = "add_photo"
	callbackNoPhoto  = "no_photo"

	serverPrefix  = "server_"
	pagePrefix    = "page_"
	approvePrefix = "approve_"
	rejectPrefix  = "reject_"
)

func ServerCallback(serverID int64) string { return fmt.Sprintf("%s%d", serverPrefix, serverID) }
func PageCallback(page int) string         { return fmt.Sprintf("%s%d", pagePrefix, page) }
func CancelCallback() string               { return callbackCancel }
func AddPhotoCallback() string             { return callbackAddPhoto }
func SkipPhotoCallback() string            { return callbackNoPhoto }

func DecisionCallback(kind DecisionKind, adID int64) string {
	prefix := approvePrefix
	if kind == DecisionReject {
		prefix = rejectPrefix
	}
	return fmt.Sprintf("%s%d", prefix, adID)
}

// Parser turns raw updates into core events. ComposeLabels holds the menu
// button captions (all languages) that trigger a new composition.
type Parser struct {
	ComposeLabels []string
}

func (p Parser) FromUpdate(u *api.Update) (Event, bool) {
	if u == nil {
		return nil, false
	}
	if cq := u.CallbackQuery; cq != nil {
		return p.fromCallback(cq.Data)
	}
	msg := u.Message
	if msg == nil {
		return nil, false
	}
	if msg.IsCommand() {
		if msg.Command() == "start" {
			return Start{}, true
		}
		return nil, false
	}
	if len(msg.Photo) > 0 {
		return PhotoReceived{FileID: msg.Photo[len(msg.Photo)-1].FileID}, true
	}
	if msg.Text != "" {
		if tool.In(msg.Text, p.ComposeLabels...) {
			return StartCompose{}, true
		}
		return TextReceived{Text: msg.Text}, true
	}
	return nil, false
}

func (p Parser) fromCallback(data string) (Event, bool) {
	switch {
	case data == callbackCancel:
		return Cancel{}, true
	case data == callbackAddPhoto:
		return AddPhoto{}, true
	case data == callbackNoPhoto:
		return SkipPhoto{}, true
	case strings.HasPrefix(data, serverPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, serverPrefix), 10, 64)
		if err != nil {
			return nil, false
		}
		return ServerChosen{ServerID: id}, true
	case strings.HasPrefix(data, pagePrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(data, pagePrefix))
		if err != nil || page < 0 {
			return nil, false
		}
		return PageRequested{Page: page}, true
	case strings.HasPrefix(data, approvePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, approvePrefix), 10, 64)
		if err != nil {
			return nil, false
		}
		return Decision{Kind: DecisionApprove, AdID: id}, true
	case strings.HasPrefix(data, rejectPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, rejectPrefix), 10, 64)
		if err != nil {
			return nil, false
		}
		return Decision{Kind: DecisionReject, AdID: id}, true
	}
	return nil, false
}

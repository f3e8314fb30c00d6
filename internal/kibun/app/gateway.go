package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bdobrica/Kibun/common/trace"
	"github.com/bdobrica/Kibun/internal/kibun/chat"
	"github.com/bdobrica/Kibun/internal/kibun/diary"
	"github.com/bdobrica/Kibun/internal/kibun/llm"
	"github.com/bdobrica/Kibun/internal/kibun/matrix"
	"github.com/bdobrica/Kibun/internal/kibun/profile"
)

const commandPrefix = "!"

// errNotACommand is returned by parseCommand for plain chat text.
var errNotACommand = errors.New("not a command")

const helpText = `Kibun commands:
!diary <text>                     add to today's diary entry
!diary edit <YYYY-MM-DD> <text>   replace the entry for a day
!profile                          show your emotional profile
!goals                            suggest personal objectives
!help                             show this message
Anything else is a chat message.`

// RoomSender is the outbound side of a Matrix connection.
// *matrix.Client satisfies it.
type RoomSender interface {
	Reply(ctx context.Context, roomID, eventID, message string) error
	SendNotice(ctx context.Context, roomID, message string) error
	DisplayName(ctx context.Context, userID string) (string, error)
	SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error
}

var _ RoomSender = (*matrix.Client)(nil)

// command is a parsed "!name rest" message. Rest keeps its original
// spacing so diary text survives untouched.
type command struct {
	Name string
	Rest string
}

func parseCommand(text string) (command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, commandPrefix) {
		return command{}, errNotACommand
	}
	text = strings.TrimPrefix(text, commandPrefix)
	name, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name, rest = text[:i], text[i:]
	}
	if name == "" {
		return command{}, errNotACommand
	}
	return command{Name: strings.ToLower(name), Rest: strings.TrimSpace(rest)}, nil
}

// Gateway turns Matrix room messages into diary, profile and chat calls.
// The sender's MXID is the user ID.
type Gateway struct {
	sender   RoomSender
	diaries  Diaries
	chats    Chats
	profiles Profiles
}

// NewGateway wires a Gateway.
func NewGateway(sender RoomSender, diaries Diaries, chats Chats, profiles Profiles) *Gateway {
	return &Gateway{sender: sender, diaries: diaries, chats: chats, profiles: profiles}
}

// HandleMessage is a matrix.MessageHandler.
func (g *Gateway) HandleMessage(ctx context.Context, msg matrix.Message) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	logger := trace.Logger(ctx).With("room", msg.RoomID, "sender", msg.Sender)

	cmd, err := parseCommand(msg.Body)
	var response string
	switch {
	case errors.Is(err, errNotACommand):
		response, err = g.chat(ctx, msg)
	case cmd.Name == "diary":
		response, err = g.diary(ctx, msg.Sender, cmd.Rest)
	case cmd.Name == "profile":
		response, err = g.profile(ctx, msg.Sender)
	case cmd.Name == "goals":
		response, err = g.goals(ctx, msg.Sender)
	default:
		// !help and unknown commands.
		if err := g.sender.SendNotice(ctx, msg.RoomID, helpText); err != nil {
			logger.Error("gateway: failed to send help", "err", err)
		}
		return
	}

	if err != nil {
		logger.Warn("gateway: command failed", "command", cmd.Name, "err", err)
		response = friendlyError(err)
	}
	if response == "" {
		return
	}
	if err := g.sender.Reply(ctx, msg.RoomID, msg.EventID, response); err != nil {
		logger.Error("gateway: failed to send reply", "err", err)
	}
}

func (g *Gateway) diary(ctx context.Context, userID, rest string) (string, error) {
	date := time.Time{}
	mode := diary.ModeAppend
	text := rest

	if sub, args, _ := strings.Cut(rest, " "); strings.EqualFold(sub, "edit") {
		dateArg, body, _ := strings.Cut(strings.TrimSpace(args), " ")
		d, err := diary.ParseDate(dateArg)
		if err != nil {
			return "Usage: !diary edit <YYYY-MM-DD> <text>", nil
		}
		date, mode, text = d, diary.ModeReplace, body
	}

	e, err := g.diaries.Upsert(ctx, userID, date, text, mode)
	if err != nil {
		return "", err
	}
	verb := "Saved"
	if mode == diary.ModeReplace {
		verb = "Replaced"
	}
	return fmt.Sprintf("%s your entry for %s. Dominant emotion: %s.", verb, e.DateString(), e.Emotions.Dominant()), nil
}

func (g *Gateway) profile(ctx context.Context, userID string) (string, error) {
	p, err := g.profiles.Profile(ctx, userID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Profile from %d entries (as of %s)\n", p.EntryCount, p.AsOf.Format(diary.DateLayout))
	fmt.Fprintf(&b, "Dominant emotion: %s (%s)\n", p.DominantEmotion, p.Tendency)
	fmt.Fprintf(&b, "Average emotions: %s\n", p.AverageEmotions)
	fmt.Fprintf(&b, "Big Five: %s", p.BigFive)
	if c := p.Classification; !c.IsEmpty() {
		fmt.Fprintf(&b, "\nPersonality type: %s", c.EnneagramType)
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		if c.Recommendation != "" {
			fmt.Fprintf(&b, "\nSuggestion: %s", c.Recommendation)
		}
	}
	return b.String(), nil
}

func (g *Gateway) goals(ctx context.Context, userID string) (string, error) {
	o, err := g.profiles.Objectives(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(o.Goals) == 0 {
		return "No objectives to suggest yet. Keep writing!", nil
	}
	var b strings.Builder
	b.WriteString("Personal objectives:")
	for i, goal := range o.Goals {
		fmt.Fprintf(&b, "\n%d. %s", i+1, goal)
	}
	return b.String(), nil
}

func (g *Gateway) chat(ctx context.Context, msg matrix.Message) (string, error) {
	if err := g.sender.SetTyping(ctx, msg.RoomID, true, 30*time.Second); err != nil {
		trace.Logger(ctx).Debug("gateway: typing indicator failed", "err", err)
	}
	defer func() {
		_ = g.sender.SetTyping(ctx, msg.RoomID, false, 0)
	}()

	name, err := g.sender.DisplayName(ctx, msg.Sender)
	if err != nil {
		trace.Logger(ctx).Debug("gateway: display name lookup failed", "err", err)
		name = ""
	}
	reply, err := g.chats.Reply(ctx, msg.Sender, name, msg.Body)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func friendlyError(err error) string {
	switch {
	case errors.Is(err, diary.ErrEmptyEntry):
		return "That entry is empty. Usage: !diary <text>"
	case errors.Is(err, diary.ErrNoPriorEntry):
		return "There is no entry for that day to edit."
	case errors.Is(err, profile.ErrInsufficientData):
		return "Not enough diary history yet. Write a few entries with !diary first."
	case errors.Is(err, chat.ErrEmptyMessage):
		return ""
	case errors.Is(err, chat.ErrRateLimited):
		return "You're sending messages quickly. Give me a moment."
	case errors.Is(err, llm.ErrUnavailable):
		return "I can't reach my language model right now. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/election_ledger/internal/models"
	"github.com/jaam8/election_ledger/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const (
	COMMAND     = "/election"
	HelpMessage = "i know only this command:\n- `/election vote election_id candidate_id`\n- `/election voted election_id`\n- `/election result election_id`\n- `/election help`"
)

// Poster is the part of the Mattermost client the bot writes with.
type Poster interface {
	CreatePost(post *model.Post) (*model.Post, *model.Response, error)
	CreatePostEphemeral(post *model.PostEphemeral) (*model.Post, *model.Response, error)
}

type BotHandler struct {
	s         *service.ElectionService
	l         *zap.Logger
	client    Poster
	channelID string
}

func NewBotHandler(s *service.ElectionService, l *zap.Logger, client Poster, channelID string) *BotHandler {
	return &BotHandler{
		s:         s,
		l:         l,
		client:    client,
		channelID: channelID,
	}
}

// HandleMessage decodes a posted event and dispatches it.
func (h *BotHandler) HandleMessage(ctx context.Context, event *model.WebSocketEvent, botID string) {
	raw, ok := event.GetData()["post"].(string)
	if !ok {
		h.l.Error("event has no post")
		return
	}
	post := &model.Post{}
	if err := json.Unmarshal([]byte(raw), post); err != nil {
		h.l.Error("error unmarshalling post", zap.Error(err))
		return
	}
	h.HandlePost(ctx, post, botID)
}

func (h *BotHandler) HandlePost(ctx context.Context, post *model.Post, botID string) {
	if post == nil || post.UserId == botID {
		return
	}
	args := strings.Fields(post.Message)
	if len(args) == 0 || args[0] != COMMAND {
		return
	}
	if len(args) < 2 {
		h.reply(post, HelpMessage)
		return
	}
	h.l.Info("new request for the bot",
		zap.String("command", args[0]),
		zap.String("subcommand", args[1]),
		zap.String("user_id", post.UserId),
		zap.String("channel_id", post.ChannelId))

	switch {
	case args[1] == "vote" && len(args) == 4:
		h.vote(ctx, post, args[2], args[3])
	case args[1] == "voted" && len(args) == 3:
		h.voted(ctx, post, args[2])
	case args[1] == "result" && len(args) == 3:
		h.result(ctx, post, args[2])
	default:
		h.reply(post, HelpMessage)
	}
}

func (h *BotHandler) vote(ctx context.Context, post *model.Post, electionID, candidateID string) {
	_, err := h.s.CastVote(ctx, models.CastVoteRequest{
		ElectionID:  electionID,
		CandidateID: candidateID,
		VoterID:     post.UserId,
	})
	if err != nil {
		h.reply(post, h.errorMessage("failed to vote", err))
		return
	}
	h.l.Info("voted successfully",
		zap.String("election_id", electionID),
		zap.String("user_id", post.UserId))
	h.reply(post, "your vote successfully written")
}

func (h *BotHandler) voted(ctx context.Context, post *model.Post, electionID string) {
	record, err := h.s.VoterReceipt(ctx, electionID, post.UserId)
	switch {
	case errors.Is(err, models.ErrVoteNotFound):
		h.reply(post, "you have not voted in this election yet")
	case err != nil:
		h.reply(post, h.errorMessage("failed to find vote", err))
	default:
		h.reply(post, fmt.Sprintf("you voted for *%s* at %s",
			record.CandidateID, record.CastAt.Format("2006-01-02 15:04:05")))
	}
}

func (h *BotHandler) result(ctx context.Context, post *model.Post, electionID string) {
	view, err := h.s.BuildResults(ctx, electionID)
	if err != nil {
		h.reply(post, h.errorMessage("failed to get results", err))
		return
	}
	channelID := h.channelID
	if channelID == "" {
		channelID = post.ChannelId
	}
	if err := h.SendMsg(channelID, FormatResults(view)); err != nil {
		h.l.Error("failed sending results", zap.Error(err))
	}
}

// FormatResults renders a results view as a Markdown message.
func FormatResults(view *models.ResultsView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Election**: %s (%s)\n**Status**: %s\n**Total votes**: %d\n",
		view.Name, view.Where, view.Phase, view.TotalVotes)
	fmt.Fprintf(&b, "**Winner**: %s\n**Winning party**: %s\n", view.Winner, view.WinningParty)
	for _, d := range view.Distribution {
		fmt.Fprintf(&b, "  %s votes: **%d** (*%s*)\n", d.CandidateID, d.Votes, d.PartyName)
	}
	return b.String()
}

func (h *BotHandler) errorMessage(msg string, err error) string {
	switch {
	case models.IsRejection(err),
		errors.Is(err, models.ErrElectionNotFound),
		errors.Is(err, models.ErrVoterNotFound),
		errors.Is(err, models.ErrInvalidID):
		h.l.Warn(msg, zap.Error(err))
		return err.Error()
	default:
		h.l.Error(msg, zap.Error(err))
		return "something went wrong"
	}
}

func (h *BotHandler) reply(post *model.Post, message string) {
	_, _, err := h.client.CreatePostEphemeral(&model.PostEphemeral{
		UserID: post.UserId,
		Post:   &model.Post{ChannelId: post.ChannelId, Message: message},
	})
	if err != nil {
		h.l.Error("failed sending ephemeral post", zap.Error(err))
	}
}

func (h *BotHandler) SendMsg(channelID, message string) error {
	post := &model.Post{
		ChannelId: channelID,
		Message:   message,
	}
	_, resp, err := h.client.CreatePost(post)
	if err != nil {
		return fmt.Errorf("handler: failed to send message: %w", err)
	}
	if resp != nil {
		h.l.Debug("send new message",
			zap.String("channel_id", post.ChannelId),
			zap.Int("status_code", resp.StatusCode))
	}
	return nil
}

package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"group-chat/auth"
	"group-chat/contract"
	"group-chat/domain"
	"group-chat/domain/event"
	"group-chat/errors"
	"group-chat/moderation"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IGateway is the per-connection entry point of the chat. Every operation acts on behalf of
// the user owning the connection; success events are delivered by the operation itself,
// failures are returned to the transport.
type IGateway interface {
	Connect(ctx context.Context, conn contract.Connection) error
	Disconnect(conn contract.Connection)
	SendMessageToGroup(ctx context.Context, conn contract.Connection, cmd domain.SendMessageCommand) error
	CreateGroup(ctx context.Context, conn contract.Connection, cmd domain.CreateGroupCommand) (domain.Group, error)
	JoinGroup(ctx context.Context, conn contract.Connection, cmd domain.JoinGroupCommand) error
	BroadcastToAll(ctx context.Context, conn contract.Connection, cmd domain.BroadcastCommand) error
	InviteToGroup(ctx context.Context, conn contract.Connection, cmd domain.InviteCommand) error
	History(ctx context.Context, conn contract.Connection, cmd domain.HistoryCommand) error
	SearchMessages(ctx context.Context, conn contract.Connection, cmd domain.SearchCommand) error
}

// Ensure *Gateway implements the IGateway interface at compile time.
var _ IGateway = (*Gateway)(nil)

type Gateway struct {
	log             *slog.Logger
	registry        contract.IRegistry
	users           contract.IUserRepository
	groups          contract.IGroupRepository
	index           contract.IMessageIndex
	moderator       *moderation.Moderator
	policy          *auth.Policy
	deliveryTimeout time.Duration
	searchLimit     int
}

// NewGateway wires the gateway. index and moderator are optional: without an index search
// returns nothing, without a moderator text is stored as sent.
func NewGateway(log *slog.Logger, registry contract.IRegistry,
	users contract.IUserRepository, groups contract.IGroupRepository,
	index contract.IMessageIndex, moderator *moderation.Moderator,
	policy *auth.Policy, deliveryTimeout time.Duration, searchLimit int) *Gateway {
	return &Gateway{
		log:             log,
		registry:        registry,
		users:           users,
		groups:          groups,
		index:           index,
		moderator:       moderator,
		policy:          policy,
		deliveryTimeout: deliveryTimeout,
		searchLimit:     searchLimit,
	}
}

// Connect binds the connection to every group of its user and pushes, for each group
// with history, its most recent message to this connection only.
func (g *Gateway) Connect(ctx context.Context, conn contract.Connection) error {
	user, err := g.caller(ctx, conn)
	if err != nil {
		return err
	}

	summaries, err := g.groups.GetUserGroups(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load groups of %s: %w", user.ID, err)
	}

	g.registry.AddConnection(conn)
	for _, summary := range summaries {
		g.registry.RegisterGroup(summary.Group.ID)
		if err := g.registry.BindConnection(summary.Group.ID, conn.ID()); err != nil {
			return err
		}
	}

	lastMessages := lo.FilterMap(summaries, func(s domain.GroupSummary, _ int) (domain.Message, bool) {
		if s.LastMessage == nil {
			return domain.Message{}, false
		}
		return *s.LastMessage, true
	})
	senders := g.senders(ctx, lastMessages)
	for _, message := range lastMessages {
		g.deliver(ctx, conn, event.NewLastMessage(message, senders[message.SenderID]))
	}

	g.log.Info("Connection opened",
		"user_id", user.ID,
		"connection_id", conn.ID(),
		"groups", len(summaries),
		"catch_up", len(lastMessages))
	return nil
}

// Disconnect forgets the connection, unbinding it from every group.
func (g *Gateway) Disconnect(conn contract.Connection) {
	g.registry.RemoveConnection(conn.ID())
	g.log.Info("Connection closed", "user_id", conn.UserID(), "connection_id", conn.ID())
}

func (g *Gateway) SendMessageToGroup(ctx context.Context, conn contract.Connection, cmd domain.SendMessageCommand) error {
	user, err := g.authorize(ctx, conn, domain.SendMessageToGroupMethod)
	if err != nil {
		return err
	}
	if err := g.requireMember(ctx, conn, cmd.GroupID); err != nil {
		return err
	}

	text, lang := cmd.Text, moderation.DetectLanguage(cmd.Text)
	if g.moderator != nil {
		review := g.moderator.Review(cmd.Text)
		text, lang = review.Text, review.Lang
		if len(review.Words) > 0 {
			g.log.Info("Message censored", "user_id", user.ID, "group_id", cmd.GroupID, "words", len(review.Words))
		}
	}

	message, err := g.groups.AppendMessage(ctx, domain.Message{
		ID:        uuid.New(),
		GroupID:   cmd.GroupID,
		SenderID:  user.ID,
		Text:      text,
		Lang:      lang,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to append message to %s: %w", cmd.GroupID, err)
	}

	if g.index != nil {
		if err := g.index.Index(message); err != nil {
			g.log.Warn("Message not indexed", "group_id", message.GroupID, "error", err)
		}
	}

	g.fanout(ctx, g.registry.ConnectionsFor(cmd.GroupID), event.NewMessage(message, user.Info()), "")
	return nil
}

// CreateGroup persists a group owned by the caller, private unless stated otherwise.
func (g *Gateway) CreateGroup(ctx context.Context, conn contract.Connection, cmd domain.CreateGroupCommand) (domain.Group, error) {
	user, err := g.authorize(ctx, conn, domain.CreateGroupMethod)
	if err != nil {
		return domain.Group{}, err
	}

	private := cmd.IsPrivate == nil || *cmd.IsPrivate
	group := domain.NewGroup(domain.GroupID(uuid.NewString()), cmd.Name, cmd.Description, user.ID, private, time.Now().UTC())
	if err := g.groups.CreateGroup(ctx, group); err != nil {
		return domain.Group{}, fmt.Errorf("failed to create group %s: %w", cmd.Name, err)
	}

	g.registry.RegisterGroup(group.ID)
	g.bindUser(group.ID, user.ID, conn)

	g.deliver(ctx, conn, event.NewGroupCreated(group, user.Info()))
	g.fanout(ctx, g.registry.ConnectionsFor(group.ID),
		event.NewBroadCast(fmt.Sprintf("%s created the group %s", user.Name, group.Name)), "")

	g.log.Info("Group created", "user_id", user.ID, "group_id", group.ID, "private", private)
	return group, nil
}

// JoinGroup checks in order: redundant join, then invitation for private groups. The move
// from invited to member is persisted before the connection is bound.
func (g *Gateway) JoinGroup(ctx context.Context, conn contract.Connection, cmd domain.JoinGroupCommand) error {
	user, err := g.authorize(ctx, conn, domain.JoinGroupMethod)
	if err != nil {
		return err
	}
	if g.registry.IsBound(cmd.GroupID, conn.ID()) {
		return fmt.Errorf("%s in %s: %w", user.ID, cmd.GroupID, errors.ErrAlreadyInGroup)
	}

	group, err := g.groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		return err
	}
	if err := group.CanJoin(user.ID); err != nil {
		return fmt.Errorf("%s in %s: %w", user.ID, cmd.GroupID, err)
	}

	group, err = g.groups.JoinGroup(ctx, cmd.GroupID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to join %s: %w", cmd.GroupID, err)
	}

	g.registry.RegisterGroup(group.ID)
	g.bindUser(group.ID, user.ID, conn)

	notice := event.NewBroadCast(fmt.Sprintf("%s joined the group %s", user.Name, group.Name))
	g.fanout(ctx, g.registry.ConnectionsFor(group.ID), notice, conn.ID())
	g.deliver(ctx, conn, notice)

	g.log.Info("Group joined", "user_id", user.ID, "group_id", group.ID)
	return nil
}

// BroadcastToAll is restricted to elevated roles, checked before anything is delivered.
func (g *Gateway) BroadcastToAll(ctx context.Context, conn contract.Connection, cmd domain.BroadcastCommand) error {
	user, err := g.authorize(ctx, conn, domain.BroadcastToAllMethod)
	if err != nil {
		return err
	}

	connections := g.registry.Connections()
	g.fanout(ctx, connections, event.NewBroadCast(cmd.Text), "")

	g.log.Info("Global broadcast", "user_id", user.ID, "connections", len(connections))
	return nil
}

// InviteToGroup adds a user to the invited set. Only the group owner or an elevated role may invite.
func (g *Gateway) InviteToGroup(ctx context.Context, conn contract.Connection, cmd domain.InviteCommand) error {
	user, err := g.authorize(ctx, conn, domain.InviteToGroupMethod)
	if err != nil {
		return err
	}

	group, err := g.groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		return err
	}
	if group.OwnerID != user.ID && !g.policy.IsElevated(user.Role) {
		return fmt.Errorf("%s on %s: %w", user.ID, cmd.GroupID, errors.ErrNotGroupOwner)
	}

	group, err = g.groups.InviteUser(ctx, cmd.GroupID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to invite %s to %s: %w", cmd.UserID, cmd.GroupID, err)
	}

	g.fanout(ctx, g.registry.ConnectionsOfUser(cmd.UserID),
		event.NewBroadCast(fmt.Sprintf("%s invited you to join the group %s (%s)", user.Name, group.Name, group.ID)), "")
	g.deliver(ctx, conn, event.NewBroadCast(fmt.Sprintf("%s has been invited to the group %s", cmd.UserID, group.Name)))

	g.log.Info("User invited", "user_id", user.ID, "group_id", group.ID, "invitee", cmd.UserID)
	return nil
}

// History sends one page of the group's messages, newest first, to the caller.
func (g *Gateway) History(ctx context.Context, conn contract.Connection, cmd domain.HistoryCommand) error {
	if _, err := g.authorize(ctx, conn, domain.HistoryMethod); err != nil {
		return err
	}
	if err := g.requireMember(ctx, conn, cmd.GroupID); err != nil {
		return err
	}

	messages, cursor, err := g.groups.GetMessages(ctx, cmd.GroupID, cmd.Cursor)
	if err != nil {
		return fmt.Errorf("failed to page messages of %s: %w", cmd.GroupID, err)
	}

	g.deliver(ctx, conn, event.NewHistory(cmd.GroupID, g.payloads(ctx, messages), cursor))
	return nil
}

// SearchMessages runs a full-text search restricted to one group the caller belongs to.
func (g *Gateway) SearchMessages(ctx context.Context, conn contract.Connection, cmd domain.SearchCommand) error {
	if _, err := g.authorize(ctx, conn, domain.SearchMessagesMethod); err != nil {
		return err
	}
	if err := g.requireMember(ctx, conn, cmd.GroupID); err != nil {
		return err
	}

	var messages []domain.Message
	if g.index != nil {
		limit := cmd.Limit
		if limit <= 0 || limit > g.searchLimit {
			limit = g.searchLimit
		}
		var err error
		if messages, err = g.index.Search(ctx, cmd.GroupID, cmd.Terms, limit); err != nil {
			return fmt.Errorf("failed to search %s: %w", cmd.GroupID, err)
		}
	}

	g.deliver(ctx, conn, event.NewSearchResult(cmd.GroupID, cmd.Terms, g.payloads(ctx, messages)))
	return nil
}

// caller loads the persisted user behind the connection. A token for a user the store
// does not know is an identity failure, not a lookup failure.
func (g *Gateway) caller(ctx context.Context, conn contract.Connection) (domain.User, error) {
	user, err := g.users.GetUser(ctx, conn.UserID())
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("unknown user %s: %w", conn.UserID(), errors.ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (g *Gateway) authorize(ctx context.Context, conn contract.Connection, method domain.Method) (domain.User, error) {
	user, err := g.caller(ctx, conn)
	if err != nil {
		return domain.User{}, err
	}
	if err := g.policy.Authorize(method, user.Role); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// isMember answers from the registry when the connection is already bound, otherwise from
// the store. A positive store answer binds the connection so the next call is a fast path.
func (g *Gateway) isMember(ctx context.Context, conn contract.Connection, groupID domain.GroupID) (bool, error) {
	if g.registry.IsBound(groupID, conn.ID()) {
		return true, nil
	}

	group, err := g.groups.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !group.HasMember(conn.UserID()) {
		return false, nil
	}

	g.registry.RegisterGroup(groupID)
	if err := g.registry.BindConnection(groupID, conn.ID()); err != nil {
		return false, err
	}
	g.log.Debug("Connection bound from store", "user_id", conn.UserID(), "group_id", groupID)
	return true, nil
}

func (g *Gateway) requireMember(ctx context.Context, conn contract.Connection, groupID domain.GroupID) error {
	member, err := g.isMember(ctx, conn, groupID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%s in %s: %w", conn.UserID(), groupID, errors.ErrNotMember)
	}
	return nil
}

// bindUser binds every live connection of the user, the calling one included.
func (g *Gateway) bindUser(groupID domain.GroupID, userID domain.UserID, conn contract.Connection) {
	ids := lo.Uniq(append(
		lo.Map(g.registry.ConnectionsOfUser(userID), func(c contract.Connection, _ int) domain.ConnectionID { return c.ID() }),
		conn.ID(),
	))
	for _, id := range ids {
		if err := g.registry.BindConnection(groupID, id); err != nil {
			g.log.Warn("Bind failed", "group_id", groupID, "connection_id", id, "error", err)
		}
	}
}

func (g *Gateway) senders(ctx context.Context, messages []domain.Message) map[domain.UserID]domain.UserInfo {
	ids := lo.Uniq(lo.Map(messages, func(m domain.Message, _ int) domain.UserID { return m.SenderID }))
	if len(ids) == 0 {
		return nil
	}
	users, err := g.users.GetUsers(ctx, ids)
	if err != nil {
		g.log.Warn("Senders not resolved", "error", err)
	}
	infos := lo.MapValues(users, func(u domain.User, _ domain.UserID) domain.UserInfo { return u.Info() })
	for _, id := range ids {
		if _, ok := infos[id]; !ok {
			infos[id] = domain.UserInfo{ID: id}
		}
	}
	return infos
}

func (g *Gateway) payloads(ctx context.Context, messages []domain.Message) []event.MessagePayload {
	return event.ToMessagePayloads(messages, g.senders(ctx, messages))
}

// deliver is fire-and-forget: a failed send is logged, never returned to the caller.
func (g *Gateway) deliver(ctx context.Context, conn contract.Connection, envelope event.Envelope) {
	ctx, cancel := context.WithTimeout(ctx, g.deliveryTimeout)
	defer cancel()
	if err := conn.Send(ctx, envelope); err != nil {
		g.log.Warn("Event not delivered",
			"event", envelope.Event,
			"user_id", conn.UserID(),
			"connection_id", conn.ID(),
			"error", err)
	}
}

func (g *Gateway) fanout(ctx context.Context, connections []contract.Connection, envelope event.Envelope, exclude domain.ConnectionID) {
	for _, conn := range connections {
		if conn.ID() == exclude {
			continue
		}
		g.deliver(ctx, conn, envelope)
	}
}

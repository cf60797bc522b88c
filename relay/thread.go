package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/babelrelay/babelrelay/models"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// HandleThreadCreate mirrors a new thread under an enrolled parent channel
// into every sibling of the parent. The thread is promoted to its own
// singleton group so that messages inside it relay independently.
func (e *Engine) HandleThreadCreate(t *discordgo.ThreadCreate) error {
	// Threads we created ourselves (or that webhooks created) must not
	// mirror again. A webhook owner is not a resolvable user.
	if t.OwnerID != "" {
		owner, err := e.session.User(t.OwnerID)
		if err != nil {
			var restErr *discordgo.RESTError
			if errors.As(err, &restErr) {
				return nil
			}
			return err
		}
		if owner.ID == e.selfID {
			return nil
		}
	}
	if t.ParentID == "" || t.ThreadMetadata == nil {
		return nil
	}

	// Replayed or already-mirrored thread.
	if known, err := e.channelByID(t.ID); err != nil || known != nil {
		return err
	}

	parent, err := e.channelByID(t.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return nil
	}

	parentGroup, sourceLang, cred, err := e.groupContext(parent)
	if err != nil {
		e.log.Warnw("channel enrolled but group context unresolvable", "channel", parent.ChannelID, "error", err)
		return nil
	}
	if !parentGroup.AutoThreading {
		return nil
	}

	// Promote the thread to a singleton group named after it. Only the
	// reaction-proxy flag is inherited; thread-of-thread mirroring is not
	// recursive.
	group := models.TranslationGroup{
		Name:          t.ID,
		GuildID:       parentGroup.GuildID,
		ReactionProxy: parentGroup.ReactionProxy,
	}
	if err := e.db.Create(&group).Error; err != nil {
		return err
	}

	parentID := t.ParentID
	thread := models.Channel{
		ChannelID:       t.ID,
		ParentChannelID: &parentID,
		GroupName:       group.Name,
		Lang:            parent.Lang,
		WebhookID:       parent.WebhookID,
		WebhookToken:    parent.WebhookToken,
	}
	if err := e.db.Create(&thread).Error; err != nil {
		return err
	}

	siblings, err := e.siblings(parentGroup, parent.ChannelID)
	if err != nil {
		return err
	}

	parentInfo, err := e.session.Channel(t.ParentID)
	if err != nil {
		return err
	}

	if parentInfo.Type == discordgo.ChannelTypeGuildForum {
		return e.mirrorForumThread(t, group.Name, siblings, sourceLang, cred)
	}
	return e.mirrorAnchoredThread(t, group.Name, siblings, sourceLang, cred)
}

// mirrorForumThread handles forum-style parents: each thread is an
// independent top-level conversation keyed by a starter message whose ID
// equals the thread's. The mirror is a webhook post that opens a new thread
// on the sibling.
func (e *Engine) mirrorForumThread(t *discordgo.ThreadCreate, groupName string, siblings []models.Channel, sourceLang translate.Lang, cred translate.Credential) error {
	starter, err := e.session.ChannelMessage(t.ID, t.ID)
	if err != nil {
		return err
	}
	inter := newIntermediate(starter)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.limit)
	for _, sibling := range siblings {
		sibling := sibling
		g.Go(func() error {
			if err := e.forumThreadOnSibling(ctx, t, &sibling, groupName, starter, inter, sourceLang, cred); err != nil {
				e.log.Errorw("forum thread mirror failed", "thread", t.ID, "sibling", sibling.ChannelID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) forumThreadOnSibling(ctx context.Context, t *discordgo.ThreadCreate, sibling *models.Channel, groupName string, starter *discordgo.Message, inter intermediateMessage, sourceLang translate.Lang, cred translate.Credential) error {
	targetLang, err := translate.ParseLang(sibling.Lang)
	if err != nil {
		return err
	}

	title, err := e.translator.Translate(ctx, t.Name, sourceLang, targetLang, cred)
	if err != nil {
		return err
	}
	translated, err := inter.translated(ctx, e.translator, sourceLang, targetLang, cred)
	if err != nil {
		return err
	}

	webhookID, token, err := e.hooks.IdentityFor(sibling)
	if err != nil {
		return err
	}

	params, err := translated.webhookParams(ctx, e.httpClient)
	if err != nil {
		return err
	}
	params.ThreadName = title

	posted, err := e.session.WebhookExecute(webhookID, token.Reveal(), true, params)
	if err != nil {
		return err
	}

	// The posted message opens the mirrored forum thread; its ID doubles as
	// the new thread's channel ID.
	mirrorThread := models.Channel{
		ChannelID:       posted.ID,
		ParentChannelID: &sibling.ChannelID,
		GroupName:       groupName,
		Lang:            targetLang.String(),
		WebhookID:       webhookID,
		WebhookToken:    token,
	}
	if err := e.db.Create(&mirrorThread).Error; err != nil {
		return err
	}

	mapping := models.Message{
		MessageID:         posted.ID,
		OriginalMessageID: &starter.ID,
		ChannelID:         posted.ID,
	}
	return e.db.Create(&mapping).Error
}

// mirrorAnchoredThread handles regular parents: the thread hangs off a
// specific message, so each sibling's copy is anchored to that message's
// mirror. A starter that was never mirrored aborts only that sibling.
func (e *Engine) mirrorAnchoredThread(t *discordgo.ThreadCreate, groupName string, siblings []models.Channel, sourceLang translate.Lang, cred translate.Credential) error {
	starter, err := e.session.ChannelMessage(t.ParentID, t.ID)
	if err != nil {
		return err
	}
	anchored := starter.Type == discordgo.MessageTypeDefault

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.limit)
	for _, sibling := range siblings {
		sibling := sibling
		g.Go(func() error {
			if err := e.anchoredThreadOnSibling(ctx, t, &sibling, groupName, starter, anchored, sourceLang, cred); err != nil {
				e.log.Errorw("thread mirror failed", "thread", t.ID, "sibling", sibling.ChannelID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) anchoredThreadOnSibling(ctx context.Context, t *discordgo.ThreadCreate, sibling *models.Channel, groupName string, starter *discordgo.Message, anchored bool, sourceLang translate.Lang, cred translate.Credential) error {
	targetLang, err := translate.ParseLang(sibling.Lang)
	if err != nil {
		return err
	}

	title, err := e.translator.Translate(ctx, t.Name, sourceLang, targetLang, cred)
	if err != nil {
		return err
	}

	start := &discordgo.ThreadStart{
		Name:                title,
		Type:                t.Type,
		AutoArchiveDuration: t.ThreadMetadata.AutoArchiveDuration,
		Invitable:           t.ThreadMetadata.Invitable,
	}

	var created *discordgo.Channel
	if anchored {
		var mirror models.Message
		err := e.db.
			Where("original_message_id = ? AND channel_id = ?", starter.ID, sibling.ChannelID).
			First(&mirror).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: starter %s in channel %s", ErrMirrorNotFound, starter.ID, sibling.ChannelID)
		}
		if err != nil {
			return err
		}
		created, err = e.session.MessageThreadStartComplex(sibling.ChannelID, mirror.MessageID, start)
		if err != nil {
			return err
		}
	} else {
		// The starter is a system message and was never relayed; open the
		// mirrored thread unanchored.
		created, err = e.session.ThreadStartComplex(sibling.ChannelID, start)
		if err != nil {
			return err
		}
	}

	mirrorThread := models.Channel{
		ChannelID:       created.ID,
		ParentChannelID: &sibling.ChannelID,
		GroupName:       groupName,
		Lang:            targetLang.String(),
		WebhookID:       sibling.WebhookID,
		WebhookToken:    sibling.WebhookToken,
	}
	return e.db.Create(&mirrorThread).Error
}

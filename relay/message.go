package relay

import (
	"context"
	"errors"

	"github.com/babelrelay/babelrelay/models"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// HandleMessageCreate mirrors a newly authored message into every sibling
// channel of its group.
func (e *Engine) HandleMessageCreate(m *discordgo.MessageCreate) error {
	// System messages are not relayed.
	if m.Type != discordgo.MessageTypeDefault {
		return nil
	}
	// The synthetic head message of a forum thread shares the thread's ID.
	if m.ID == m.ChannelID {
		return nil
	}

	channel, err := e.channelByID(m.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		// Most guild activity is outside any group.
		return nil
	}

	// Loop prevention: never re-relay something we posted ourselves.
	if m.WebhookID != "" && m.WebhookID == channel.WebhookID {
		return nil
	}

	group, sourceLang, cred, err := e.groupContext(channel)
	if err != nil {
		e.log.Warnw("channel enrolled but group context unresolvable", "channel", channel.ChannelID, "error", err)
		return nil
	}

	// Root row first; sibling failures must not roll it back.
	root := models.Message{MessageID: m.ID, ChannelID: channel.ChannelID}
	if err := e.db.Create(&root).Error; err != nil {
		return err
	}

	siblings, err := e.siblings(group, channel.ChannelID)
	if err != nil {
		return err
	}

	inter := newIntermediate(m.Message)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.limit)
	for _, sibling := range siblings {
		sibling := sibling
		g.Go(func() error {
			if err := e.mirrorCreate(ctx, &sibling, m.Message, inter, sourceLang, cred); err != nil {
				e.log.Errorw("mirror failed", "source", m.ID, "sibling", sibling.ChannelID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) mirrorCreate(ctx context.Context, sibling *models.Channel, src *discordgo.Message, inter intermediateMessage, sourceLang translate.Lang, cred translate.Credential) error {
	targetLang, err := translate.ParseLang(sibling.Lang)
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

	var posted *discordgo.Message
	if sibling.ParentChannelID != nil {
		// Thread channels post through the parent's webhook, scoped to the thread.
		posted, err = e.session.WebhookThreadExecute(webhookID, token.Reveal(), true, sibling.ChannelID, params)
	} else {
		posted, err = e.session.WebhookExecute(webhookID, token.Reveal(), true, params)
	}
	if err != nil {
		return err
	}

	mirror := models.Message{
		MessageID:         posted.ID,
		OriginalMessageID: &src.ID,
		ChannelID:         sibling.ChannelID,
	}
	return e.db.Create(&mirror).Error
}

// HandleMessageUpdate re-translates an edited root and pushes the edit to
// every recorded mirror. Edits to untracked messages and to mirrors are
// ignored; a sibling with no mirror row was never mirrored and is skipped.
func (e *Engine) HandleMessageUpdate(m *discordgo.MessageUpdate) error {
	if m.Content == "" && len(m.Embeds) == 0 {
		return nil
	}

	var root models.Message
	err := e.db.First(&root, "message_id = ?", m.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if root.OriginalMessageID != nil {
		// Only roots propagate.
		return nil
	}

	channel, err := e.channelByID(root.ChannelID)
	if err != nil || channel == nil {
		return err
	}

	_, sourceLang, cred, err := e.groupContext(channel)
	if err != nil {
		e.log.Warnw("channel enrolled but group context unresolvable", "channel", channel.ChannelID, "error", err)
		return nil
	}

	var mirrors []models.Message
	if err := e.db.Where("original_message_id = ?", m.ID).Find(&mirrors).Error; err != nil {
		return err
	}

	inter := newIntermediate(m.Message)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.limit)
	for _, mirror := range mirrors {
		mirror := mirror
		g.Go(func() error {
			if err := e.mirrorEdit(ctx, mirror, inter, sourceLang, cred); err != nil {
				e.log.Errorw("edit propagation failed", "source", m.ID, "mirror", mirror.MessageID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) mirrorEdit(ctx context.Context, mirror models.Message, inter intermediateMessage, sourceLang translate.Lang, cred translate.Credential) error {
	sibling, err := e.channelByID(mirror.ChannelID)
	if err != nil {
		return err
	}
	if sibling == nil {
		return nil
	}

	targetLang, err := translate.ParseLang(sibling.Lang)
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

	edit := &discordgo.WebhookEdit{
		Content: &translated.content,
		Embeds:  &translated.embeds,
	}
	_, err = e.session.WebhookMessageEdit(webhookID, token.Reveal(), threadScopedID(mirror.MessageID, sibling), edit)
	return err
}

// threadScopedID targets a webhook message inside a thread. The edit and
// delete endpoints require a thread_id query parameter for thread messages,
// and discordgo has no thread-aware variant of either, so the parameter rides
// on the message ID path segment. The rate limit bucket is keyed on the
// webhook token alone and is unaffected.
func threadScopedID(messageID string, sibling *models.Channel) string {
	if sibling.ParentChannelID == nil {
		return messageID
	}
	return messageID + "?thread_id=" + sibling.ChannelID
}

// HandleMessageDelete removes the mapping row for a deleted message. A root
// cascades: every mirror row is removed and one delete is issued against each
// mirror's posting identity. Per-mirror failures are logged, not blocking.
func (e *Engine) HandleMessageDelete(m *discordgo.MessageDelete) error {
	var row models.Message
	err := e.db.First(&row, "message_id = ?", m.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if row.OriginalMessageID != nil {
		// A mirror deleted upstream: drop its row, leave the root alone.
		return e.db.Delete(&models.Message{}, "message_id = ?", row.MessageID).Error
	}

	var mirrors []models.Message
	if err := e.db.Where("original_message_id = ?", row.MessageID).Find(&mirrors).Error; err != nil {
		return err
	}

	for _, mirror := range mirrors {
		if err := e.deleteMirror(mirror); err != nil {
			e.log.Errorw("mirror delete failed", "mirror", mirror.MessageID, "error", err)
		}
		if err := e.db.Delete(&models.Message{}, "message_id = ?", mirror.MessageID).Error; err != nil {
			return err
		}
	}

	return e.db.Delete(&models.Message{}, "message_id = ?", row.MessageID).Error
}

func (e *Engine) deleteMirror(mirror models.Message) error {
	sibling, err := e.channelByID(mirror.ChannelID)
	if err != nil {
		return err
	}
	if sibling == nil {
		return nil
	}

	webhookID, token, err := e.hooks.IdentityFor(sibling)
	if err != nil {
		return err
	}
	return e.session.WebhookMessageDelete(webhookID, token.Reveal(), threadScopedID(mirror.MessageID, sibling))
}

// Package webhooks manages per-channel posting identities. Discord can
// invalidate a stored webhook behind our back (manual deletion, channel
// rebuild); the manager reprovisions transparently and writes the fresh
// identity back onto the channel row.
package webhooks

import (
	"errors"
	"net/http"

	"github.com/babelrelay/babelrelay/models"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookName = "Auto Translator"

// WebhookAPI is the slice of the Discord session the manager needs.
// *discordgo.Session satisfies it.
type WebhookAPI interface {
	WebhookWithToken(webhookID, token string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
}

type Manager struct {
	db  *gorm.DB
	api WebhookAPI
	log *zap.SugaredLogger
}

func NewManager(db *gorm.DB, api WebhookAPI, log *zap.SugaredLogger) *Manager {
	return &Manager{db: db, api: api, log: log}
}

// IdentityFor returns a usable posting identity for the channel. The stored
// identity is validated first; if Discord reports it gone, a new webhook is
// created and persisted last-writer-wins. Concurrent callers may race here,
// which is safe: identities are interchangeable.
func (m *Manager) IdentityFor(channel *models.Channel) (string, models.WebhookToken, error) {
	_, err := m.api.WebhookWithToken(channel.WebhookID, channel.WebhookToken.Reveal())
	if err == nil {
		return channel.WebhookID, channel.WebhookToken, nil
	}
	if !isInvalidWebhook(err) {
		return "", "", err
	}

	m.log.Infow("stored webhook invalid, reprovisioning", "channel", channel.ChannelID)
	id, token, err := m.Provision(channel.ChannelID, channel.ParentChannelID)
	if err != nil {
		return "", "", err
	}

	update := m.db.Model(&models.Channel{}).
		Where("channel_id = ?", channel.ChannelID).
		Updates(map[string]interface{}{"webhook_id": id, "webhook_token": token.Reveal()})
	if update.Error != nil {
		return "", "", update.Error
	}

	channel.WebhookID = id
	channel.WebhookToken = token
	return id, token, nil
}

// Provision creates a fresh webhook. Threads cannot own webhooks, so a thread
// channel gets one created on its parent.
func (m *Manager) Provision(channelID string, parentChannelID *string) (string, models.WebhookToken, error) {
	target := channelID
	if parentChannelID != nil {
		target = *parentChannelID
	}

	webhook, err := m.api.WebhookCreate(target, webhookName, "")
	if err != nil {
		return "", "", err
	}
	return webhook.ID, models.WebhookToken(webhook.Token), nil
}

// isInvalidWebhook reports whether the error means the identity itself is
// gone, as opposed to a transient failure that should propagate.
func isInvalidWebhook(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownWebhook {
		return true
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusUnauthorized:
			return true
		}
	}
	return false
}

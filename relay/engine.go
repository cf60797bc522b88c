// Package relay mirrors conversational events across the channels of a
// translation group. One inbound event drives one logical relay operation:
// resolve siblings, translate, dispatch through each sibling's posting
// identity, and record the origin -> mirror mapping so later edits and
// deletes can find their counterparts.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/babelrelay/babelrelay/models"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMirrorNotFound means a referenced origin was never mirrored into the
// sibling, e.g. it predates the channel's enrollment. It aborts only the
// affected sibling.
var ErrMirrorNotFound = errors.New("no mirror recorded for origin")

// Platform is the slice of the Discord session the engine dispatches through.
// *discordgo.Session satisfies it.
type Platform interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookThreadExecute(webhookID, token string, wait bool, threadID string, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageDelete(webhookID, token, messageID string, options ...discordgo.RequestOption) error
	MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadStartComplex(channelID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Translator is the translation adapter boundary.
type Translator interface {
	Translate(ctx context.Context, text string, source, target translate.Lang, cred translate.Credential) (string, error)
}

// IdentityProvider supplies a channel's posting identity. webhooks.Manager
// satisfies it.
type IdentityProvider interface {
	IdentityFor(channel *models.Channel) (string, models.WebhookToken, error)
}

type Engine struct {
	db         *gorm.DB
	session    Platform
	translator Translator
	hooks      IdentityProvider
	httpClient *http.Client
	selfID     string
	limit      int
	log        *zap.SugaredLogger
}

// New builds an engine. selfID is the bot's own user ID, used for thread loop
// prevention. limit bounds concurrent sibling dispatch; values below one mean
// unbounded.
func New(db *gorm.DB, session Platform, translator Translator, hooks IdentityProvider, selfID string, limit int, log *zap.SugaredLogger) *Engine {
	if limit < 1 {
		limit = -1
	}
	return &Engine{
		db:         db,
		session:    session,
		translator: translator,
		hooks:      hooks,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		selfID:     selfID,
		limit:      limit,
		log:        log,
	}
}

// Register attaches the engine to the session. Every handler is a boundary:
// errors are logged and never crash the process.
func (e *Engine) Register(dg *discordgo.Session) {
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if err := e.HandleMessageCreate(m); err != nil {
			e.log.Errorw("message create relay failed", "message", m.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if err := e.HandleMessageUpdate(m); err != nil {
			e.log.Errorw("message edit relay failed", "message", m.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		if err := e.HandleMessageDelete(m); err != nil {
			e.log.Errorw("message delete relay failed", "message", m.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, t *discordgo.ThreadCreate) {
		if err := e.HandleThreadCreate(t); err != nil {
			e.log.Errorw("thread mirror failed", "thread", t.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, c *discordgo.ChannelDelete) {
		if err := e.HandleChannelDelete(c); err != nil {
			e.log.Errorw("channel cleanup failed", "channel", c.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		if err := e.HandleGuildDelete(g); err != nil {
			e.log.Errorw("guild cleanup failed", "guild", g.ID, "error", err)
		}
	})
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		e.log.Infof("%s is connected, %d guilds", r.User.Username, len(r.Guilds))
	})
}

// channelByID loads an enrolled channel row. A nil channel with a nil error
// means the channel is not enrolled, which is the common case and not an
// error.
func (e *Engine) channelByID(channelID string) (*models.Channel, error) {
	var channel models.Channel
	err := e.db.First(&channel, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// groupContext resolves channel -> group -> guild and returns the group, the
// source language, and the guild's translation credential.
func (e *Engine) groupContext(channel *models.Channel) (*models.TranslationGroup, translate.Lang, translate.Credential, error) {
	lang, err := translate.ParseLang(channel.Lang)
	if err != nil {
		return nil, "", translate.Credential{}, err
	}

	var group models.TranslationGroup
	if err := e.db.First(&group, "name = ?", channel.GroupName).Error; err != nil {
		return nil, "", translate.Credential{}, err
	}

	var guild models.Guild
	if err := e.db.First(&guild, "guild_id = ?", group.GuildID).Error; err != nil {
		return nil, "", translate.Credential{}, err
	}

	return &group, lang, translate.Credential{Key: guild.DeepLKey, Pro: guild.DeepLPro}, nil
}

// siblings returns every other channel in the group.
func (e *Engine) siblings(group *models.TranslationGroup, channelID string) ([]models.Channel, error) {
	var out []models.Channel
	err := e.db.
		Where("group_name = ? AND channel_id <> ?", group.Name, channelID).
		Find(&out).Error
	return out, err
}

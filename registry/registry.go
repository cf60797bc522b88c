// Package registry owns the guild -> group -> channel membership model. It is
// the read path behind every relay decision and the write path behind the
// admin commands. The store is the single source of truth; nothing here is
// cached.
package registry

import (
	"errors"
	"fmt"

	"github.com/babelrelay/babelrelay/models"
	"github.com/babelrelay/babelrelay/translate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrGuildExists    = errors.New("guild already registered")
	ErrDuplicateGroup = errors.New("group name already exists")
	ErrUnknownGroup   = errors.New("group not found")
	ErrUnknownChannel = errors.New("channel not enrolled")
)

// Provisioner creates a posting identity for a channel being enrolled.
// webhooks.Manager satisfies it.
type Provisioner interface {
	Provision(channelID string, parentChannelID *string) (string, models.WebhookToken, error)
}

type Registry struct {
	db    *gorm.DB
	hooks Provisioner
	log   *zap.SugaredLogger
}

func New(db *gorm.DB, hooks Provisioner, log *zap.SugaredLogger) *Registry {
	return &Registry{db: db, hooks: hooks, log: log}
}

// RegisterGuild stores a guild with its translation credential and optional
// role gates.
func (r *Registry) RegisterGuild(guildID string, cred translate.Credential, adminRoleID, ignoreRoleID *string) error {
	var existing models.Guild
	err := r.db.First(&existing, "guild_id = ?", guildID).Error
	if err == nil {
		return fmt.Errorf("%w: %s", ErrGuildExists, guildID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	guild := models.Guild{
		GuildID:      guildID,
		DeepLKey:     cred.Key,
		DeepLPro:     cred.Pro,
		AdminRoleID:  adminRoleID,
		IgnoreRoleID: ignoreRoleID,
	}
	return r.db.Create(&guild).Error
}

type GroupFlags struct {
	AutoThreading   bool
	TranslateTitles bool
	ReactionProxy   bool
}

// CreateGroup creates a named translation group scoped to a guild.
func (r *Registry) CreateGroup(guildID, name string, flags GroupFlags) error {
	var existing models.TranslationGroup
	err := r.db.First(&existing, "name = ?", name).Error
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateGroup, name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	group := models.TranslationGroup{
		Name:            name,
		GuildID:         guildID,
		AutoThreading:   flags.AutoThreading,
		TranslateTitles: flags.TranslateTitles,
		ReactionProxy:   flags.ReactionProxy,
	}
	return r.db.Create(&group).Error
}

// EnrollChannel adds a channel to a group, provisioning a posting identity as
// a side effect. No row is persisted when the language tag is unrecognized or
// provisioning fails.
func (r *Registry) EnrollChannel(groupName, channelID, langTag string, parentChannelID *string) error {
	lang, err := translate.ParseLang(langTag)
	if err != nil {
		return err
	}

	var group models.TranslationGroup
	if err := r.db.First(&group, "name = ?", groupName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownGroup, groupName)
		}
		return err
	}

	webhookID, token, err := r.hooks.Provision(channelID, parentChannelID)
	if err != nil {
		return err
	}

	channel := models.Channel{
		ChannelID:       channelID,
		ParentChannelID: parentChannelID,
		GroupName:       group.Name,
		Lang:            lang.String(),
		WebhookID:       webhookID,
		WebhookToken:    token,
	}
	return r.db.Create(&channel).Error
}

// FindGroupForChannel resolves the group an enrolled channel belongs to.
func (r *Registry) FindGroupForChannel(channelID string) (*models.TranslationGroup, error) {
	var channel models.Channel
	if err := r.db.First(&channel, "channel_id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
		}
		return nil, err
	}

	var group models.TranslationGroup
	if err := r.db.First(&group, "name = ?", channel.GroupName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, channel.GroupName)
		}
		return nil, err
	}
	return &group, nil
}

// FindSiblings returns every other channel in the caller's group.
func (r *Registry) FindSiblings(channelID string) ([]models.Channel, error) {
	var channel models.Channel
	if err := r.db.First(&channel, "channel_id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
		}
		return nil, err
	}

	var siblings []models.Channel
	err := r.db.
		Where("group_name = ? AND channel_id <> ?", channel.GroupName, channel.ChannelID).
		Find(&siblings).Error
	if err != nil {
		return nil, err
	}
	return siblings, nil
}

package models

// Guild is a Discord server that has been set up for translation. It owns the
// DeepL credential used for every translation inside the guild.
type Guild struct {
	GuildID      string  `gorm:"primaryKey" json:"guild_id"`
	DeepLKey     string  `json:"deepl_key"`
	DeepLPro     bool    `json:"deepl_pro"`
	AdminRoleID  *string `json:"admin_role_id"`
	IgnoreRoleID *string `json:"ignore_role_id"`

	Groups []TranslationGroup `gorm:"foreignKey:GuildID;references:GuildID;constraint:OnDelete:CASCADE"`
}

// TranslationGroup is a named set of channels that mirror one another.
// The name is the join key used by channel membership. Groups created for a
// promoted thread are named after the thread ID.
type TranslationGroup struct {
	Name            string `gorm:"primaryKey" json:"name"`
	GuildID         string `json:"guild_id"`
	AutoThreading   bool   `json:"auto_threading"`
	TranslateTitles bool   `json:"translate_titles"`
	ReactionProxy   bool   `json:"reaction_proxy"`

	Channels []Channel `gorm:"foreignKey:GroupName;references:Name;constraint:OnDelete:CASCADE"`
}

// Channel is a single chat channel enrolled in exactly one group.
// ParentChannelID is set when the channel is a thread; thread channels inherit
// the parent's webhook identity.
type Channel struct {
	ChannelID       string       `gorm:"primaryKey" json:"channel_id"`
	ParentChannelID *string      `json:"parent_channel_id"`
	GroupName       string       `json:"group_name"`
	Lang            string       `json:"lang"`
	WebhookID       string       `json:"webhook_id"`
	WebhookToken    WebhookToken `json:"-"`

	Messages []Message `gorm:"foreignKey:ChannelID;references:ChannelID;constraint:OnDelete:CASCADE"`
}

// Message links a posted artifact to its origin. OriginalMessageID is nil for
// the first-authored copy; mirrors point back at the root. The relation is
// acyclic: a root never references another message.
type Message struct {
	MessageID         string  `gorm:"primaryKey" json:"message_id"`
	OriginalMessageID *string `gorm:"index" json:"original_message_id"`
	ChannelID         string  `json:"channel_id"`
}

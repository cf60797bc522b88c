package relay

import (
	"github.com/babelrelay/babelrelay/models"
	"github.com/bwmarrin/discordgo"
)

// HandleChannelDelete drops the row for a channel deleted upstream. The
// store's cascade takes its messages with it. Unenrolled channels are a no-op.
func (e *Engine) HandleChannelDelete(c *discordgo.ChannelDelete) error {
	return e.db.Delete(&models.Channel{}, "channel_id = ?", c.ID).Error
}

// HandleGuildDelete drops a guild the bot was removed from, cascading to its
// groups, channels and messages. An availability blip is not a removal.
func (e *Engine) HandleGuildDelete(g *discordgo.GuildDelete) error {
	if g.Unavailable {
		return nil
	}
	return e.db.Delete(&models.Guild{}, "guild_id = ?", g.ID).Error
}

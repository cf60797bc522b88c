package commands

import (
	"fmt"

	"github.com/babelrelay/babelrelay/registry"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
)

func (c *Commands) handleInit(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		respond(s, i, "This command can only be used in a server.")
		return
	}

	cred := translate.Credential{}
	var adminRole, ignoreRole *string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "deepl_key":
			cred.Key = opt.StringValue()
		case "deepl_pro":
			cred.Pro = opt.BoolValue()
		case "admin_role":
			if role := opt.RoleValue(s, i.GuildID); role != nil {
				adminRole = &role.ID
			}
		case "ignore_role":
			if role := opt.RoleValue(s, i.GuildID); role != nil {
				ignoreRole = &role.ID
			}
		}
	}

	if err := c.registry.RegisterGuild(i.GuildID, cred, adminRole, ignoreRole); err != nil {
		c.log.Errorf("init failed: %v", err)
		respond(s, i, fmt.Sprintf("Setup failed: %v", err))
		return
	}
	respond(s, i, "Server is ready for translation groups.")
}

func (c *Commands) handleNew(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		respond(s, i, "This command can only be used in a server.")
		return
	}

	var name string
	// Explicit groups mirror threads and titles unless told otherwise.
	flags := registry.GroupFlags{AutoThreading: true, TranslateTitles: true, ReactionProxy: true}
	for _, opt := range sub.Options {
		switch opt.Name {
		case "name":
			name = opt.StringValue()
		case "auto_threading":
			flags.AutoThreading = opt.BoolValue()
		case "translate_titles":
			flags.TranslateTitles = opt.BoolValue()
		case "reaction_proxy":
			flags.ReactionProxy = opt.BoolValue()
		}
	}

	if err := c.registry.CreateGroup(i.GuildID, name, flags); err != nil {
		c.log.Errorf("group creation failed: %v", err)
		respond(s, i, fmt.Sprintf("Could not create group: %v", err))
		return
	}
	respond(s, i, fmt.Sprintf("Group %q created.", name))
}

func (c *Commands) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if i.GuildID == "" {
		respond(s, i, "This command can only be used in a server.")
		return
	}

	var groupName, channelID, lang string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "group_name":
			groupName = opt.StringValue()
		case "channel":
			if channel := opt.ChannelValue(s); channel != nil {
				channelID = channel.ID
			}
		case "lang":
			lang = opt.StringValue()
		}
	}

	if err := c.registry.EnrollChannel(groupName, channelID, lang, nil); err != nil {
		c.log.Errorf("enrollment failed: %v", err)
		respond(s, i, fmt.Sprintf("Could not enroll channel: %v", err))
		return
	}
	respond(s, i, fmt.Sprintf("Channel enrolled into %q.", groupName))
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

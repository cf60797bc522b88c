package commands

import (
	"github.com/babelrelay/babelrelay/registry"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var botCommands = []*discordgo.ApplicationCommand{
	{
		Type:        discordgo.ChatApplicationCommand,
		Name:        "translate",
		Description: "Manage translation groups",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "init",
				Description: "Set up this server with a DeepL credential",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "deepl_key",
						Description: "DeepL API key",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "deepl_pro",
						Description: "Use the paid DeepL API",
					},
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "admin_role",
						Description: "Role allowed to manage groups",
					},
					{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "ignore_role",
						Description: "Role whose messages are never relayed",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "new",
				Description: "Create a translation group",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Group name",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "auto_threading",
						Description: "Mirror new threads automatically",
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "translate_titles",
						Description: "Translate thread titles",
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "reaction_proxy",
						Description: "Proxy reactions across mirrors",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Enroll a channel into a group",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "group_name",
						Description: "Group to join",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Channel to enroll",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "lang",
						Description: "Language tag (EN, FR, JA, ...)",
						Required:    true,
					},
				},
			},
		},
	},
}

type Commands struct {
	registry *registry.Registry
	log      *zap.SugaredLogger
}

func New(reg *registry.Registry, log *zap.SugaredLogger) *Commands {
	return &Commands{registry: reg, log: log}
}

func (c *Commands) RegisterCommands(dg *discordgo.Session) {
	c.addCommands(dg)
	c.addHandlers(dg)
}

func (c *Commands) addCommands(dg *discordgo.Session) {
	c.log.Info("Adding commands")
	user, err := dg.User("@me")
	if err != nil {
		c.log.Panicf("Cannot resolve bot user : %v", err)
	}
	_, err = dg.ApplicationCommandBulkOverwrite(user.ID, "", botCommands)
	if err != nil {
		c.log.Panicf("Cannot create commands : %v", err)
	}
}

func (c *Commands) addHandlers(dg *discordgo.Session) {
	dg.AddHandler(
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			if i.Type != discordgo.InteractionApplicationCommand {
				return
			}
			data := i.ApplicationCommandData()
			if data.Name != "translate" || len(data.Options) == 0 {
				return
			}
			switch data.Options[0].Name {
			case "init":
				c.handleInit(s, i, data.Options[0])
			case "new":
				c.handleNew(s, i, data.Options[0])
			case "add":
				c.handleAdd(s, i, data.Options[0])
			default:
				c.log.Infof("Unknown subcommand %s", data.Options[0].Name)
			}
		})
}

func (c *Commands) RemoveCommands(dg *discordgo.Session) {
	applicationsCommandsAvailable, err := dg.ApplicationCommands(dg.State.User.ID, "")
	if err != nil {
		c.log.Fatal(err)
	}
	for _, v := range applicationsCommandsAvailable {
		if err = dg.ApplicationCommandDelete(dg.State.User.ID, "", v.ID); err != nil {
			c.log.Infof("Could not delete '%s' command: %v", v.Name, err)
		}
		c.log.Infof("Deleted command %s", v.Name)
	}
	c.log.Info("Deleted commands")
}

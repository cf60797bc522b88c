package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/babelrelay/babelrelay/commands"
	"github.com/babelrelay/babelrelay/database"
	"github.com/babelrelay/babelrelay/logging"
	"github.com/babelrelay/babelrelay/registry"
	"github.com/babelrelay/babelrelay/relay"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/babelrelay/babelrelay/webhooks"
	"github.com/bwmarrin/discordgo"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

func main() {
	initLogger()
	initconfig()
	database.InitDB(viper.GetString("database_path"))
	db := database.GetDB()

	dg, err := discordgo.New("Bot " + viper.GetString("token"))
	if err != nil {
		log.Fatal("error creating discord session, ", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildWebhooks |
		discordgo.IntentMessageContent

	log.Info("Opening Websocket connection")
	err = dg.Open()
	if err != nil {
		log.Fatalf("Could not open Websocket connection %s", err)
	}
	defer dg.Close()

	dg.UpdateListeningStatus(viper.GetString("bot_status"))

	translator := translate.NewClient(viper.GetString("deepl_api_url"), viper.GetString("deepl_free_api_url"))
	hooks := webhooks.NewManager(db, dg, log)
	reg := registry.New(db, hooks, log)
	engine := relay.New(db, dg, translator, hooks, dg.State.User.ID, viper.GetInt("relay_concurrency"), log)

	log.Info("Adding handlers")
	engine.Register(dg)

	cmds := commands.New(reg, log)
	cmds.RegisterCommands(dg)

	// Wait here until CTRL-C or other term signal is received.
	log.Info("Bot is now running.  Press CTRL-C to exit.")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	cmds.RemoveCommands(dg)
}

func initLogger() {
	log = logging.InitLogger()
}

func initconfig() {
	viper.SetDefault("token", "")
	viper.SetDefault("bot_status", "translating everything")
	viper.SetDefault("database_path", "babelrelay.db")
	viper.SetDefault("relay_concurrency", 4)
	viper.SetDefault("deepl_api_url", translate.DefaultAPIURL)
	viper.SetDefault("deepl_free_api_url", translate.DefaultFreeAPIURL)
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal(err)
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
	})
	viper.WatchConfig()
}

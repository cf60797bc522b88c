package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/babelrelay/babelrelay/database"
	"github.com/babelrelay/babelrelay/models"
	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const selfID = "bot-user"

// fakeTranslator prefixes text with the target language so tests can assert
// that translation happened and with which tag.
type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (f *fakeTranslator) Translate(ctx context.Context, text string, source, target translate.Lang, cred translate.Credential) (string, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	return fmt.Sprintf("[%s]%s", target, text), nil
}

// storedIdentity hands back the identity already on the channel row.
type storedIdentity struct{}

func (storedIdentity) IdentityFor(channel *models.Channel) (string, models.WebhookToken, error) {
	return channel.WebhookID, channel.WebhookToken, nil
}

type executeCall struct {
	webhookID string
	token     string
	threadID  string
	params    *discordgo.WebhookParams
}

type editCall struct {
	webhookID string
	messageID string
	data      *discordgo.WebhookEdit
}

type fakePlatform struct {
	mu sync.Mutex

	nextID   int
	executes []executeCall
	edits    []editCall
	deletes  []string

	failWebhooks map[string]error
	channels     map[string]*discordgo.Channel
	messages     map[string]*discordgo.Message
	users        map[string]*discordgo.User

	threadStarts         []string
	messageThreadAnchors []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		failWebhooks: map[string]error{},
		channels:     map[string]*discordgo.Channel{},
		messages:     map[string]*discordgo.Message{},
		users:        map[string]*discordgo.User{},
	}
}

func (f *fakePlatform) nextMessageID() string {
	f.nextID++
	return fmt.Sprintf("posted-%d", f.nextID)
}

func (f *fakePlatform) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.WebhookThreadExecute(webhookID, token, wait, "", data)
}

func (f *fakePlatform) WebhookThreadExecute(webhookID, token string, wait bool, threadID string, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failWebhooks[webhookID]; err != nil {
		return nil, err
	}
	f.executes = append(f.executes, executeCall{webhookID: webhookID, token: token, threadID: threadID, params: data})
	return &discordgo.Message{ID: f.nextMessageID()}, nil
}

func (f *fakePlatform) WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failWebhooks[webhookID]; err != nil {
		return nil, err
	}
	f.edits = append(f.edits, editCall{webhookID: webhookID, messageID: messageID, data: data})
	return &discordgo.Message{ID: messageID}, nil
}

func (f *fakePlatform) WebhookMessageDelete(webhookID, token, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failWebhooks[webhookID]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakePlatform) MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageThreadAnchors = append(f.messageThreadAnchors, channelID+"/"+messageID)
	return &discordgo.Channel{ID: "thread-on-" + channelID, Name: data.Name}, nil
}

func (f *fakePlatform) ThreadStartComplex(channelID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadStarts = append(f.threadStarts, channelID)
	return &discordgo.Channel{ID: "thread-on-" + channelID, Name: data.Name}, nil
}

func (f *fakePlatform) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.channels[channelID]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown channel %s", channelID)
}

func (f *fakePlatform) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[channelID+"/"+messageID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown message %s in %s", messageID, channelID)
}

func (f *fakePlatform) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

type fixture struct {
	engine     *Engine
	db         *gorm.DB
	platform   *fakePlatform
	translator *fakeTranslator
}

// newFixture seeds guild1 with group "news" holding chanA (EN, hookA),
// chanB (FR, hookB) and chanC (JA, hookC).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatal(err)
	}

	seed := []interface{}{
		&models.Guild{GuildID: "guild1", DeepLKey: "key"},
		&models.TranslationGroup{Name: "news", GuildID: "guild1", AutoThreading: true, TranslateTitles: true, ReactionProxy: true},
		&models.Channel{ChannelID: "chanA", GroupName: "news", Lang: "EN", WebhookID: "hookA", WebhookToken: "tokA"},
		&models.Channel{ChannelID: "chanB", GroupName: "news", Lang: "FR", WebhookID: "hookB", WebhookToken: "tokB"},
		&models.Channel{ChannelID: "chanC", GroupName: "news", Lang: "JA", WebhookID: "hookC", WebhookToken: "tokC"},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatal(err)
		}
	}

	platform := newFakePlatform()
	translator := &fakeTranslator{}
	engine := New(db, platform, translator, storedIdentity{}, selfID, 4, zap.NewNop().Sugar())
	return &fixture{engine: engine, db: db, platform: platform, translator: translator}
}

func (fx *fixture) messageRows(t *testing.T, where string, args ...interface{}) []models.Message {
	t.Helper()
	var rows []models.Message
	if err := fx.db.Where(where, args...).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	return rows
}

func authoredMessage(id, channelID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		Content:   content,
		Type:      discordgo.MessageTypeDefault,
		Author:    &discordgo.User{ID: "author", Username: "Alice"},
	}}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

var errPlatformDown = errors.New("platform down")

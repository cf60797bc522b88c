package relay

import (
	"strings"
	"testing"

	"github.com/babelrelay/babelrelay/models"
	"github.com/bwmarrin/discordgo"
)

func newThreadEvent(id, parentID, owner, title string) *discordgo.ThreadCreate {
	return &discordgo.ThreadCreate{Channel: &discordgo.Channel{
		ID:       id,
		Name:     title,
		ParentID: parentID,
		GuildID:  "guild1",
		OwnerID:  owner,
		Type:     discordgo.ChannelTypeGuildPublicThread,
		ThreadMetadata: &discordgo.ThreadMetadata{
			AutoArchiveDuration: 1440,
			Invitable:           true,
		},
	}}
}

func seedUser(fx *fixture, id string) {
	fx.platform.users[id] = &discordgo.User{ID: id, Username: id}
}

func TestThreadCreateForumParent(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")
	fx.platform.channels["chanA"] = &discordgo.Channel{ID: "chanA", Type: discordgo.ChannelTypeGuildForum}
	fx.platform.messages["t1/t1"] = &discordgo.Message{
		ID:        "t1",
		ChannelID: "t1",
		Content:   "first post",
		Type:      discordgo.MessageTypeDefault,
		Author:    &discordgo.User{ID: "alice", Username: "Alice"},
	}

	ev := newThreadEvent("t1", "chanA", "alice", "Big News")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	// The thread got its own singleton group inheriting only reaction-proxy.
	var group models.TranslationGroup
	requireNoError(t, fx.db.First(&group, "name = ?", "t1").Error)
	if group.AutoThreading || group.TranslateTitles || !group.ReactionProxy {
		t.Fatalf("promoted group flags wrong: %+v", group)
	}

	// The thread itself is enrolled, inheriting language and webhook.
	var thread models.Channel
	requireNoError(t, fx.db.First(&thread, "channel_id = ?", "t1").Error)
	if thread.GroupName != "t1" || thread.Lang != "EN" || thread.WebhookID != "hookA" {
		t.Fatalf("thread enrollment wrong: %+v", thread)
	}

	// One thread-opening post per sibling, title and starter translated.
	if len(fx.platform.executes) != 2 {
		t.Fatalf("got %d executes, want 2", len(fx.platform.executes))
	}
	for _, call := range fx.platform.executes {
		if call.params.ThreadName == "" {
			t.Fatal("forum mirror did not open a thread")
		}
		if !strings.HasPrefix(call.params.ThreadName, "[") {
			t.Errorf("title not translated: %q", call.params.ThreadName)
		}
		if !strings.Contains(call.params.Content, "first post") {
			t.Errorf("starter not carried: %q", call.params.Content)
		}
	}

	// Each mirror thread is enrolled in the promoted group with a mapping row.
	var enrolled []models.Channel
	requireNoError(t, fx.db.Where("group_name = ?", "t1").Find(&enrolled).Error)
	if len(enrolled) != 3 {
		t.Fatalf("got %d channels in promoted group, want thread + 2 mirrors", len(enrolled))
	}
	mappings := fx.messageRows(t, "original_message_id = ?", "t1")
	if len(mappings) != 2 {
		t.Fatalf("got %d starter mappings, want 2", len(mappings))
	}
}

func TestThreadCreateAnchoredParent(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")
	fx.platform.channels["chanA"] = &discordgo.Channel{ID: "chanA", Type: discordgo.ChannelTypeGuildText}
	fx.platform.messages["chanA/m1"] = &discordgo.Message{
		ID:        "m1",
		ChannelID: "chanA",
		Content:   "the starter",
		Type:      discordgo.MessageTypeDefault,
		Author:    &discordgo.User{ID: "alice", Username: "Alice"},
	}

	// Relay the starter first so mirrors exist to anchor on.
	requireNoError(t, fx.engine.HandleMessageCreate(authoredMessage("m1", "chanA", "the starter")))

	ev := newThreadEvent("m1", "chanA", "alice", "Follow-up")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	if len(fx.platform.messageThreadAnchors) != 2 {
		t.Fatalf("got %d anchored thread starts, want 2", len(fx.platform.messageThreadAnchors))
	}
	for _, anchor := range fx.platform.messageThreadAnchors {
		if !strings.HasPrefix(anchor, "chanB/") && !strings.HasPrefix(anchor, "chanC/") {
			t.Errorf("thread anchored on wrong channel: %s", anchor)
		}
	}

	var enrolled []models.Channel
	requireNoError(t, fx.db.Where("group_name = ?", "m1").Find(&enrolled).Error)
	if len(enrolled) != 3 {
		t.Fatalf("got %d channels in promoted group", len(enrolled))
	}
}

func TestThreadCreateAnchoredParentMirrorMissing(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")
	fx.platform.channels["chanA"] = &discordgo.Channel{ID: "chanA", Type: discordgo.ChannelTypeGuildText}
	// Starter predates enrollment: tracked nowhere.
	fx.platform.messages["chanA/old"] = &discordgo.Message{
		ID:        "old",
		ChannelID: "chanA",
		Content:   "ancient starter",
		Type:      discordgo.MessageTypeDefault,
	}

	ev := newThreadEvent("old", "chanA", "alice", "Necro Thread")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	// Every sibling fails with MirrorNotFound; nothing anchored, nothing
	// enrolled beyond the thread itself.
	if len(fx.platform.messageThreadAnchors) != 0 {
		t.Fatal("anchored a thread without a recorded mirror")
	}
	var enrolled []models.Channel
	requireNoError(t, fx.db.Where("group_name = ?", "old").Find(&enrolled).Error)
	if len(enrolled) != 1 {
		t.Fatalf("got %d channels, want only the source thread", len(enrolled))
	}
}

func TestThreadCreateSystemStarterFallsBackUnanchored(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")
	fx.platform.channels["chanA"] = &discordgo.Channel{ID: "chanA", Type: discordgo.ChannelTypeGuildText}
	fx.platform.messages["chanA/sys"] = &discordgo.Message{
		ID:        "sys",
		ChannelID: "chanA",
		Content:   "",
		Type:      discordgo.MessageTypeChannelPinnedMessage,
	}

	ev := newThreadEvent("sys", "chanA", "alice", "Pinned Talk")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	if len(fx.platform.threadStarts) != 2 {
		t.Fatalf("got %d unanchored thread starts, want 2", len(fx.platform.threadStarts))
	}
	if len(fx.platform.messageThreadAnchors) != 0 {
		t.Fatal("system starter should not anchor")
	}
}

func TestThreadCreateRespectsAutoThreadingFlag(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")
	requireNoError(t, fx.db.Model(&models.TranslationGroup{}).Where("name = ?", "news").Update("auto_threading", false).Error)

	ev := newThreadEvent("t1", "chanA", "alice", "Quiet Thread")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	var count int64
	fx.db.Model(&models.TranslationGroup{}).Where("name = ?", "t1").Count(&count)
	if count != 0 {
		t.Fatal("thread promoted despite auto-threading off")
	}
}

func TestThreadCreateIgnoresOwnThreads(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, selfID)

	ev := newThreadEvent("t1", "chanA", selfID, "Mirror Thread")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	var count int64
	fx.db.Model(&models.TranslationGroup{}).Where("name = ?", "t1").Count(&count)
	if count != 0 {
		t.Fatal("bot-owned thread was mirrored")
	}
}

func TestThreadCreateIgnoresWebhookOwners(t *testing.T) {
	fx := newFixture(t)
	// Owner is a webhook ID, not a resolvable user.
	ev := newThreadEvent("t1", "chanA", "hookB", "Ghost Thread")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	var count int64
	fx.db.Model(&models.TranslationGroup{}).Where("name = ?", "t1").Count(&count)
	if count != 0 {
		t.Fatal("webhook-owned thread was mirrored")
	}
}

func TestThreadCreateIgnoresUnenrolledParent(t *testing.T) {
	fx := newFixture(t)
	seedUser(fx, "alice")

	ev := newThreadEvent("t1", "elsewhere", "alice", "Offside")
	requireNoError(t, fx.engine.HandleThreadCreate(ev))

	var count int64
	fx.db.Model(&models.TranslationGroup{}).Count(&count)
	if count != 1 {
		t.Fatal("group created for unenrolled parent")
	}
}

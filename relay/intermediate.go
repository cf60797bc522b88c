package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/babelrelay/babelrelay/translate"
	"github.com/bwmarrin/discordgo"
)

// intermediateMessage is the translatable projection of a Discord message:
// the content, embeds and attachments that survive a round trip through the
// provider and back out over a webhook.
type intermediateMessage struct {
	content     string
	tts         bool
	embeds      []*discordgo.MessageEmbed
	attachments []*discordgo.MessageAttachment
	authorName  string
	avatarURL   string
}

func newIntermediate(m *discordgo.Message) intermediateMessage {
	im := intermediateMessage{
		content:     m.Content,
		tts:         m.TTS,
		embeds:      m.Embeds,
		attachments: m.Attachments,
	}
	if m.Author != nil {
		im.authorName = m.Author.Username
		im.avatarURL = m.Author.AvatarURL("")
	}
	return im
}

// translated returns a copy with content and embed text translated. Embed
// fields other than title and description pass through untouched.
func (im intermediateMessage) translated(ctx context.Context, tr Translator, source, target translate.Lang, cred translate.Credential) (intermediateMessage, error) {
	content, err := tr.Translate(ctx, im.content, source, target, cred)
	if err != nil {
		return im, err
	}

	embeds := make([]*discordgo.MessageEmbed, 0, len(im.embeds))
	for _, embed := range im.embeds {
		copied := *embed
		if copied.Title != "" {
			copied.Title, err = tr.Translate(ctx, copied.Title, source, target, cred)
			if err != nil {
				return im, err
			}
		}
		if copied.Description != "" {
			copied.Description, err = tr.Translate(ctx, copied.Description, source, target, cred)
			if err != nil {
				return im, err
			}
		}
		embeds = append(embeds, &copied)
	}

	out := im
	out.content = content
	out.embeds = embeds
	return out, nil
}

// webhookParams builds the dispatch payload, re-uploading attachments so the
// mirror owns its own copies.
func (im intermediateMessage) webhookParams(ctx context.Context, httpClient *http.Client) (*discordgo.WebhookParams, error) {
	files, err := fetchAttachments(ctx, httpClient, im.attachments)
	if err != nil {
		return nil, err
	}

	return &discordgo.WebhookParams{
		Content:   im.content,
		Username:  im.authorName,
		AvatarURL: im.avatarURL,
		TTS:       im.tts,
		Embeds:    im.embeds,
		Files:     files,
	}, nil
}

func fetchAttachments(ctx context.Context, httpClient *http.Client, attachments []*discordgo.MessageAttachment) ([]*discordgo.File, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	files := make([]*discordgo.File, 0, len(attachments))
	for _, attachment := range attachments {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching attachment %s: status %d", attachment.Filename, resp.StatusCode)
		}

		files = append(files, &discordgo.File{
			Name:        attachment.Filename,
			ContentType: attachment.ContentType,
			Reader:      bytes.NewReader(body),
		})
	}
	return files, nil
}

package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/babelrelay/babelrelay/placeholder"
)

// ErrProvider wraps any failure reported by the translation provider. Retry
// policy belongs to the caller, not this layer.
var ErrProvider = errors.New("translation provider error")

const (
	DefaultAPIURL     = "https://api.deepl.com/v2/translate"
	DefaultFreeAPIURL = "https://api-free.deepl.com/v2/translate"
)

// Credential is a guild's DeepL key. Pro selects the paid API host.
type Credential struct {
	Key string
	Pro bool
}

// Client translates text through the DeepL HTTP API, masking URLs with the
// placeholder codec so the provider cannot mangle them.
type Client struct {
	httpClient *http.Client
	apiURL     string
	freeAPIURL string
}

func NewClient(apiURL, freeAPIURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if freeAPIURL == "" {
		freeAPIURL = DefaultFreeAPIURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		freeAPIURL: freeAPIURL,
	}
}

type translationResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (c *Client) Translate(ctx context.Context, text string, source, target Lang, cred Credential) (string, error) {
	if text == "" {
		return "", nil
	}

	masked, spans := placeholder.Protect(text)

	form := url.Values{}
	form.Set("text", masked)
	form.Set("source_lang", source.String())
	form.Set("target_lang", target.String())
	// Keep placeholder markers intact through the provider.
	form.Set("tag_handling", "xml")
	form.Set("ignore_tags", "x")

	endpoint := c.freeAPIURL
	if cred.Pro {
		endpoint = c.apiURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+cred.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	var parsed translationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(parsed.Translations) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}

	return placeholder.Restore(parsed.Translations[0].Text, spans), nil
}

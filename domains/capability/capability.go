package capability

import (
	"context"
	"time"

	"github.com/venadolabs/chanbind/domains/provider"
)

// Snapshot is the backend-reported capability state for the setup flow.
// Fetched once per setup mount, cached until explicitly refreshed.
type Snapshot struct {
	PersonalWeChatEnabled bool   `json:"personal_wechat_enabled"`
	WeComAppEnabled       bool   `json:"wecom_app_enabled"`
	DiscordEnabled        bool   `json:"discord_enabled"`
	TelegramEnabled       bool   `json:"telegram_enabled"`
	DiscordAccountID      string `json:"discord_account_id,omitempty"`
	TelegramAccountID     string `json:"telegram_account_id,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// AvailableProviders derives the selectable provider list. WhatsApp is the
// unconditional baseline; everything else is flag-gated.
func (s Snapshot) AvailableProviders() []provider.Provider {
	out := []provider.Provider{provider.ProviderWhatsApp}
	if s.PersonalWeChatEnabled {
		out = append(out, provider.ProviderWeChat)
	}
	if s.WeComAppEnabled {
		out = append(out, provider.ProviderWeCom)
	}
	if s.DiscordEnabled {
		out = append(out, provider.ProviderDiscord)
	}
	if s.TelegramEnabled {
		out = append(out, provider.ProviderTelegram)
	}
	return out
}

type WeComAccount struct {
	CorpID  string `json:"corp_id"`
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// Cache stores capability snapshots between setup mounts. A nil snapshot
// with a nil error means "not cached".
type Cache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, snapshot *Snapshot, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

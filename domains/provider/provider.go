package provider

import "fmt"

// Provider identifies one external messaging platform. The set is closed:
// every keyed map in the setup flow validates against it before writing.
type Provider string

const (
	ProviderWhatsApp Provider = "WHATSAPP"
	ProviderWeChat   Provider = "WECHAT"
	ProviderWeCom    Provider = "WECOM"
	ProviderDiscord  Provider = "DISCORD"
	ProviderTelegram Provider = "TELEGRAM"
)

// Transport is the underlying channel mechanism for a provider.
type Transport string

const (
	TransportPersonalSession Transport = "PERSONAL_SESSION"
	TransportBusinessAPI     Transport = "BUSINESS_API"
)

// All returns every known provider in display order.
func All() []Provider {
	return []Provider{
		ProviderWhatsApp,
		ProviderWeChat,
		ProviderWeCom,
		ProviderDiscord,
		ProviderTelegram,
	}
}

func IsValid(p Provider) bool {
	switch p {
	case ProviderWhatsApp, ProviderWeChat, ProviderWeCom, ProviderDiscord, ProviderTelegram:
		return true
	}
	return false
}

func Parse(raw string) (Provider, error) {
	p := Provider(raw)
	if !IsValid(p) {
		return "", fmt.Errorf("unknown provider: %q", raw)
	}
	return p, nil
}

// TransportFor derives the transport from the provider identity. It is never
// stored independently outside a draft.
func TransportFor(p Provider) Transport {
	if RequiresPersonalSession(p) {
		return TransportPersonalSession
	}
	return TransportBusinessAPI
}

// RequiresPersonalSession reports whether the provider's setup flow includes
// the personal_session step. True exactly for WhatsApp and personal WeChat.
func RequiresPersonalSession(p Provider) bool {
	return p == ProviderWhatsApp || p == ProviderWeChat
}

// SupportsPeerDiscovery reports whether peer candidates can be fetched from
// the gateway for the given provider/transport pair. For session-based
// providers discovery additionally needs a ready session; that runtime check
// lives with the draft orchestrator, this is topology only.
func SupportsPeerDiscovery(p Provider, t Transport) bool {
	switch p {
	case ProviderDiscord, ProviderTelegram:
		return t == TransportBusinessAPI
	case ProviderWhatsApp, ProviderWeChat:
		return t == TransportPersonalSession
	}
	return false
}

// AgentTargetsOnly reports whether the provider can only bind to agent
// targets. Telegram never supports team targets.
func AgentTargetsOnly(p Provider) bool {
	return p == ProviderTelegram
}

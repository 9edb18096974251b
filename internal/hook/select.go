package hook

import (
	"strings"

	"holdtalk/internal/config"
)

// hookMatches reports whether the lower-cased text contains any of the
// hook's match tokens.
func hookMatches(lowerText string, hk *config.HookConfig) bool {
	for _, m := range hk.Match {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && strings.Contains(lowerText, m) {
			return true
		}
	}
	return false
}

// SelectHookConfig returns the first hook whose match tokens appear in the
// text. If none match, it falls back to the first configured hook.
func SelectHookConfig(cfg *config.Config, text string) *config.HookConfig {
	if len(cfg.Hooks) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	for i := range cfg.Hooks {
		hk := &cfg.Hooks[i]
		if hookMatches(lower, hk) {
			return hk
		}
	}
	return &cfg.Hooks[0]
}

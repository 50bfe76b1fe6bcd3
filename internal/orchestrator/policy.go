package orchestrator

import (
	"fmt"
	"strings"

	"github.com/tkaster/sentrypay/internal/money"
)

// checkPolicy validates one action against the agent limits and the wallet
// snapshot. It returns the violation reason, or "" if the action passes.
func checkPolicy(action Action, target string, ctx Context) string {
	amt, ok := money.Parse(action.Amount)
	if !ok || amt.Sign() <= 0 {
		return fmt.Sprintf("invalid amount %q", action.Amount)
	}

	if lim := ctx.Limits.MaxPerTransaction; lim != "" {
		if money.Cmp(action.Amount, lim) > 0 {
			return fmt.Sprintf("amount %s exceeds per-transaction limit %s", action.Amount, lim)
		}
	}

	if lim := ctx.Limits.DailyLimit; lim != "" {
		if money.Cmp(action.Amount, lim) > 0 {
			return fmt.Sprintf("amount %s exceeds daily limit %s", action.Amount, lim)
		}
	}

	if bal := ctx.Wallet.Balance; bal != "" {
		if money.Cmp(action.Amount, bal) > 0 {
			return fmt.Sprintf("amount %s exceeds wallet balance %s", action.Amount, bal)
		}
	}

	recipient := strings.ToLower(target)
	for _, blocked := range ctx.Limits.Blocklist {
		if blocked == "" {
			continue
		}
		if strings.Contains(recipient, strings.ToLower(blocked)) {
			return fmt.Sprintf("recipient matches blocklist entry %q", blocked)
		}
	}

	return ""
}

// preTradeScore is a coarse sanity score attached to the decision record.
// It is independent of the risk engine's historical analysis: only the
// batch total relative to the wallet balance and the daily limit.
func preTradeScore(total string, wallet WalletSnapshot, limits AgentLimits) int {
	totalF := money.Float64(total)
	if totalF <= 0 {
		return 0
	}

	score := 0
	if bal := money.Float64(wallet.Balance); bal > 0 {
		switch ratio := totalF / bal; {
		case ratio > 1:
			score += 60
		case ratio > 0.5:
			score += 30
		case ratio > 0.25:
			score += 15
		}
	}
	if daily := money.Float64(limits.DailyLimit); daily > 0 {
		if totalF > daily {
			score += 40
		} else if totalF > 0.8*daily {
			score += 20
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

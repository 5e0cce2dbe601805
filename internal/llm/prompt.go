package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"tradeloop/internal/types"
)

// DefaultSystemPrompt is used when policy.system is empty.
const DefaultSystemPrompt = "You are a disciplined equities strategist. Use the quote, the portfolio overview " +
	"and any headlines to propose trades for the requested symbol only. " +
	"Respond with STRICT JSON: a list of objects " +
	`[{"action":"buy"|"sell"|"hold","symbol":string,"qty":int,"reason":string,"confidence":number between 0 and 1}]. ` +
	"Use qty 0 for hold. The reason must name the data that supports the decision."

// BuildPrompt renders the system and user messages for req.
func BuildPrompt(system string, req types.PolicyRequest) (string, string) {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}

	quotes := make([]map[string]any, 0, len(req.Quotes))
	for _, q := range req.Quotes {
		m := map[string]any{
			"symbol": q.Symbol,
			"price":  q.Price.String(),
			"source": string(q.Source),
		}
		if q.Time != nil {
			m["time"] = q.Time.Format("2006-01-02T15:04:05Z07:00")
		}
		if q.Note != "" {
			m["note"] = q.Note
		}
		quotes = append(quotes, m)
	}
	state := map[string]any{
		"scope":    req.Scope,
		"symbol":   req.Symbol,
		"quotes":   quotes,
		"overview": req.Overview,
	}
	if len(req.Headlines) > 0 {
		state["headlines"] = req.Headlines
	}
	stateB, _ := json.Marshal(state)

	user := fmt.Sprintf("Symbol: %s\nState:%s\n\nRespond ONLY with the JSON list.", req.Symbol, string(stateB))
	return system, user
}

// ParseProposals extracts trade proposals from model output. It accepts a
// JSON list, an object with a "trades" or "decisions" list, or a single
// proposal object, optionally wrapped in prose or a code fence. Values
// are not range-checked here.
func ParseProposals(text string) ([]types.TradeProposal, error) {
	t := strings.TrimSpace(stripFence(text))
	if t == "" {
		return nil, fmt.Errorf("%w: empty model output", types.ErrValidation)
	}

	if out, ok := decodeList(t); ok {
		return out, nil
	}
	// Search for the outermost list or object in surrounding prose
	if start, end := strings.Index(t, "["), strings.LastIndex(t, "]"); start >= 0 && end > start {
		if out, ok := decodeList(t[start : end+1]); ok {
			return out, nil
		}
	}
	if start, end := strings.Index(t, "{"), strings.LastIndex(t, "}"); start >= 0 && end > start {
		if out, ok := decodeList(t[start : end+1]); ok {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: unparseable model output: %.200s", types.ErrValidation, t)
}

func decodeList(s string) ([]types.TradeProposal, bool) {
	var list []types.TradeProposal
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return normalize(list), true
	}
	var wrapped struct {
		Trades    []types.TradeProposal `json:"trades"`
		Decisions []types.TradeProposal `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil {
		if wrapped.Trades != nil {
			return normalize(wrapped.Trades), true
		}
		if wrapped.Decisions != nil {
			return normalize(wrapped.Decisions), true
		}
	}
	var single types.TradeProposal
	if err := json.Unmarshal([]byte(s), &single); err == nil && single.Action != "" {
		return normalize([]types.TradeProposal{single}), true
	}
	return nil, false
}

func normalize(ps []types.TradeProposal) []types.TradeProposal {
	for i := range ps {
		ps[i].Action = types.Action(strings.ToLower(strings.TrimSpace(string(ps[i].Action))))
		ps[i].Symbol = strings.ToUpper(strings.TrimSpace(ps[i].Symbol))
	}
	return ps
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

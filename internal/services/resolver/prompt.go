package resolver

import (
	"strings"

	domainsvc "SignalBT/internal/domain/service"
)

// SystemPrompt constrains the model to a single JSON object.
const SystemPrompt = `You are a parser for cryptocurrency trading signals written in English, Turkish or a mix of both.

Return ONLY one JSON object. No markdown, no code fences, no explanations.

If the text contains a trading signal return:
{"symbol": "BTCUSDT", "side": "LONG", "entry": [42000.0, 41500.0], "tp": [43000.0, 44000.0], "sl": 40000.0, "leverage": 10, "confidence": 0.9}

Field rules:
- symbol: uppercase trading pair, append USDT when no quote asset is given
- side: "LONG" or "SHORT" (buy/al/alim means LONG, sell/sat/kisa means SHORT)
- entry: array of entry prices; one element for a single price
- tp: array of take-profit prices in the order they appear in the text
- sl: stop-loss price or null
- leverage: number or null when not stated
- confidence: your certainty between 0.0 and 1.0
- numbers use "." as decimal separator; "," in the text is always a decimal separator

If the text is not a trading signal return: {"signal": false}`

const userPrefix = "Parse this trading signal:\n\n"

// BuildRequest wraps text into the fixed completion request.
func BuildRequest(text string, temperature float64, maxTokens int) domainsvc.CompletionRequest {
	return domainsvc.CompletionRequest{
		System:      SystemPrompt,
		User:        userPrefix + strings.TrimSpace(text),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

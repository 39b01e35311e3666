package agent

import "google.golang.org/genai"

// Config tunes the Gemini chat sessions.
type Config struct {
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	SystemPrompt    string
	SafetySettings  []*genai.SafetySetting
	Fallbacks       []string
}

const defaultModel = "gemini-2.0-flash"

// systemPrompt is the sketchbook persona: a playful drawing companion for
// young children, replying briefly in the child's language.
const systemPrompt = `너는 '매직 스케치북'이라는 마법 그림책 친구야. 어린이와 짧고 다정하게 대화하면서
아이가 그리고 싶은 것을 함께 상상해 줘. 아이가 그림이나 사진을 보여 주면 신나게 반응해 주고,
한두 문장으로 쉽게 대답해. 무섭거나 어려운 이야기는 하지 않아.`

// DefaultConfig returns the production chat configuration: a kid-safe model
// setup with strict safety thresholds.
func DefaultConfig() Config {
	return Config{
		Model:           defaultModel,
		Temperature:     0.8,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 256,
		SystemPrompt:    systemPrompt,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockLowAndAbove},
		},
		Fallbacks: []string{
			"음, 조금 헷갈렸어. 다시 한 번 말해 줄래?",
			"우와, 잠깐 딴생각을 했나 봐! 뭐라고 했어?",
			"한 번만 더 말해 줘, 꼭 들을게!",
		},
	}
}

package finance

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Neruzzz/toolchat/internal/llm"
)

const storyPrompt = `You are a wise African storyteller.
Explain the financial concept or stock trend related to: "%s"

Target Audience: A 12-year-old African child.
Analogy: Use a village market, farming, or trading analogy (e.g., yams, cattle, rain).
Tone: Inspiring, educational, simple, and warm.
Length: Under 150 words.

Also, provide a short, vivid image prompt that represents this story visually.

Output Format:
STORY: [The story text]
IMAGE_PROMPT: [The image prompt]`

type Story struct {
	Text        string
	ImagePrompt string
}

// ImageURL is a Pollinations URL rendering the image prompt, or "" when
// there is none.
func (s Story) ImageURL() string {
	if strings.TrimSpace(s.ImagePrompt) == "" {
		return ""
	}
	return "https://image.pollinations.ai/prompt/" + url.PathEscape(s.ImagePrompt) + "?width=1024&height=576&nologo=true"
}

type Storyteller struct {
	model llm.Model
}

func NewStoryteller(m llm.Model) *Storyteller {
	return &Storyteller{model: m}
}

// Tell explains query as a short story. Model failures become the story
// text so the caller always has something to show.
func (s *Storyteller) Tell(ctx context.Context, query string) Story {
	text, err := llm.Complete(ctx, s.model, "", fmt.Sprintf(storyPrompt, query))
	if err != nil {
		return Story{Text: fmt.Sprintf("Could not generate story: %v", err)}
	}
	return ParseStory(text, query)
}

// ParseStory splits model output into the STORY and IMAGE_PROMPT parts.
// Output without a STORY marker is used whole, with a generic image prompt.
func ParseStory(text, query string) Story {
	if !strings.Contains(text, "STORY:") {
		return Story{
			Text:        strings.TrimSpace(text),
			ImagePrompt: "African village market learning finance " + query,
		}
	}
	story, prompt, _ := strings.Cut(text, "IMAGE_PROMPT:")
	return Story{
		Text:        strings.TrimSpace(strings.Replace(story, "STORY:", "", 1)),
		ImagePrompt: strings.TrimSpace(prompt),
	}
}

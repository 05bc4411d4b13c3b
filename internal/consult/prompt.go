package consult

import (
	"github.com/Muhammadazeem-eng/acne-detect/internal/proxy"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
)

const analysisSystemPrompt = `You are an AI skincare assistant. Analyze acne severity based on the image and provide personalized skincare, dietary, and lifestyle recommendations.

Rules:
- First name the type of acne and the specific part of the face where you identified it. Do not describe the image itself.
- State the stage (severity) of the acne.
- Then provide the solution.
- Only respond to images that show a human face or acne. Refuse any other image.`

const analysisCaption = "Here is the image."

const chatSystemPrompt = `You are an AI Dermatologist. Answer skin-related questions accurately and professionally. Do not answer any question that is not about skin.`

// BuildAnalysisPrompt constructs the single-shot messages for image analysis.
func BuildAnalysisPrompt(imageDataURI string) []proxy.Message {
	return []proxy.Message{
		{Role: proxy.RoleSystem, Content: analysisSystemPrompt},
		{Role: proxy.RoleUser, Parts: []proxy.Part{
			proxy.TextPart(analysisCaption),
			proxy.ImagePart(imageDataURI),
		}},
	}
}

// BuildChatPrompt prepends the dermatologist instruction to history. The
// instruction is never part of history itself.
func BuildChatPrompt(history []session.Exchange) []proxy.Message {
	messages := make([]proxy.Message, 0, len(history)+1)
	messages = append(messages, proxy.Message{Role: proxy.RoleSystem, Content: chatSystemPrompt})
	for _, e := range history {
		messages = append(messages, proxy.Message{Role: string(e.Role), Content: e.Content})
	}
	return messages
}
